package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/okian/taskrouter/internal/domain/model"
)

//go:embed schema.sql
var schema string

// PostgreSQL error codes mapped to repository errors.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
	notNullViolationCode    = "23502"
)

// DBTX is the subset of *sql.DB and *sql.Tx the stores use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenPostgres opens a pool through the pgx stdlib driver and verifies
// connectivity.
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", mapError(err))
	}
	return nil
}

// mapError translates driver errors into repository errors while keeping
// the original in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case foreignKeyViolationCode, checkViolationCode:
			return fmt.Errorf("%w: constraint %s: %v", ErrInvalidRecord, pgErr.ConstraintName, err)
		case notNullViolationCode:
			return fmt.Errorf("%w: column %s: %v", ErrInvalidRecord, pgErr.ColumnName, err)
		}
	}
	return err
}

// PostgresDirectory reads the catalog and rosters from Postgres. Active task
// counts are derived from the tasks table.
type PostgresDirectory struct {
	db DBTX
}

var _ Directory = (*PostgresDirectory)(nil)

// NewPostgresDirectory wraps db.
func NewPostgresDirectory(db DBTX) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Skills implements Directory.
func (d *PostgresDirectory) Skills(ctx context.Context) ([]model.Skill, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, description FROM skills ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query skills: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Skill, 0)
	for rows.Next() {
		var s model.Skill
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skills: %w", mapError(err))
	}
	return out, nil
}

const teamMembersQuery = `
SELECT u.id, u.name, u.contact_handle, u.last_active_at,
       (SELECT COUNT(*) FROM tasks t WHERE t.assignee_id = u.id AND t.status = $2)
FROM team_members tm
JOIN users u ON u.id = tm.user_id
WHERE tm.team_id = $1
ORDER BY u.id`

const teamSkillsQuery = `
SELECT us.user_id, us.skill_id, us.proficiency_level
FROM user_skills us
JOIN team_members tm ON tm.user_id = us.user_id
WHERE tm.team_id = $1
ORDER BY us.user_id, us.skill_id`

// TeamMembers implements Directory.
func (d *PostgresDirectory) TeamMembers(ctx context.Context, teamID string) ([]model.Member, error) {
	rows, err := d.db.QueryContext(ctx, teamMembersQuery, teamID, string(model.TaskAssigned))
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	members := make([]model.Member, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			m          model.Member
			lastActive sql.NullTime
		)
		if err := rows.Scan(&m.UserID, &m.Name, &m.ContactHandle, &lastActive, &m.ActiveTasks); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		m.TeamID = teamID
		if lastActive.Valid {
			m.LastActive = lastActive.Time
		}
		m.Skills = make([]model.UserSkillProfile, 0)
		index[m.UserID] = len(members)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team members: %w", mapError(err))
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("team %s: %w", teamID, ErrNotFound)
	}

	skillRows, err := d.db.QueryContext(ctx, teamSkillsQuery, teamID)
	if err != nil {
		return nil, fmt.Errorf("query team skills: %w", mapError(err))
	}
	defer func() { _ = skillRows.Close() }()

	for skillRows.Next() {
		var p model.UserSkillProfile
		if err := skillRows.Scan(&p.UserID, &p.SkillID, &p.ProficiencyLevel); err != nil {
			return nil, fmt.Errorf("scan user skill: %w", err)
		}
		if i, ok := index[p.UserID]; ok {
			members[i].Skills = append(members[i].Skills, p)
		}
	}
	if err := skillRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team skills: %w", mapError(err))
	}
	return members, nil
}

// Touch implements Directory.
func (d *PostgresDirectory) Touch(ctx context.Context, userID string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE users SET last_active_at = $2
		 WHERE id = $1 AND (last_active_at IS NULL OR last_active_at < $2)`,
		userID, at.UTC())
	if err != nil {
		return fmt.Errorf("touch user %s: %w", userID, mapError(err))
	}
	return nil
}

// AdjustActiveTasks implements Directory. Counts come from the tasks table,
// so there is nothing to update.
func (d *PostgresDirectory) AdjustActiveTasks(context.Context, string, int) error {
	return nil
}

// PostgresTaskStore persists tasks in the tasks table. Skills and
// suggestions are stored as JSONB.
type PostgresTaskStore struct {
	db *sql.DB
}

var _ TaskStore = (*PostgresTaskStore)(nil)

// NewPostgresTaskStore wraps db.
func NewPostgresTaskStore(db *sql.DB) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

const taskColumns = `id, message_id, team_id, requester_id, text, context, deadline, priority,
skills, confidence, suggestions, status, assignee_id, created_at, assigned_at`

// Create implements TaskStore.
func (s *PostgresTaskStore) Create(ctx context.Context, t model.Task) error {
	skills, err := json.Marshal(nonNil(t.Skills))
	if err != nil {
		return fmt.Errorf("encode skills: %w", err)
	}
	suggestions := t.Suggestions
	if suggestions == nil {
		suggestions = []model.AssigneeScore{}
	}
	encoded, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("encode suggestions: %w", err)
	}

	var assignedAt sql.NullTime
	if t.AssignedAt != nil {
		assignedAt = sql.NullTime{Time: t.AssignedAt.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.MessageID, t.TeamID, t.RequesterID, t.Text, t.Context, t.Deadline,
		string(t.Priority), skills, t.Confidence, encoded, string(t.Status), t.AssigneeID,
		t.CreatedAt.UTC(), assignedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, mapError(err))
	}
	return nil
}

// Get implements TaskStore.
func (s *PostgresTaskStore) Get(ctx context.Context, id string) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return model.Task{}, fmt.Errorf("get task %s: %w", id, mapError(err))
	}
	return t, nil
}

// List implements TaskStore.
func (s *PostgresTaskStore) List(ctx context.Context, f ListFilter) ([]model.Task, error) {
	f, err := normalizeLimit(f)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.TeamID != "" {
		args = append(args, f.TeamID)
		where = append(where, fmt.Sprintf("team_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, string(f.Priority))
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", mapError(err))
	}
	return out, nil
}

// Assign implements TaskStore.
func (s *PostgresTaskStore) Assign(ctx context.Context, id, userID string, at time.Time) (model.Task, string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, "", fmt.Errorf("begin assign: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT assignee_id FROM tasks WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
	if err != nil {
		return model.Task{}, "", fmt.Errorf("lock task %s: %w", id, mapError(err))
	}

	row := tx.QueryRowContext(ctx,
		`UPDATE tasks SET assignee_id = $2, status = $3, assigned_at = $4
		 WHERE id = $1 RETURNING `+taskColumns,
		id, userID, string(model.TaskAssigned), at.UTC())
	t, err := scanTask(row)
	if err != nil {
		return model.Task{}, "", fmt.Errorf("assign task %s: %w", id, mapError(err))
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, "", fmt.Errorf("commit assign: %w", err)
	}
	return t, previous, nil
}

// Count implements TaskStore. Errors count as an empty store.
func (s *PostgresTaskStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0
	}
	return n
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (model.Task, error) {
	var (
		t           model.Task
		priority    string
		status      string
		skills      []byte
		suggestions []byte
		assignedAt  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.MessageID, &t.TeamID, &t.RequesterID, &t.Text, &t.Context,
		&t.Deadline, &priority, &skills, &t.Confidence, &suggestions, &status, &t.AssigneeID,
		&t.CreatedAt, &assignedAt)
	if err != nil {
		return model.Task{}, err
	}
	t.Priority = model.Priority(priority)
	t.Status = model.TaskStatus(status)
	if assignedAt.Valid {
		at := assignedAt.Time
		t.AssignedAt = &at
	}
	if err := json.Unmarshal(skills, &t.Skills); err != nil {
		return model.Task{}, fmt.Errorf("decode skills: %w", err)
	}
	if err := json.Unmarshal(suggestions, &t.Suggestions); err != nil {
		return model.Task{}, fmt.Errorf("decode suggestions: %w", err)
	}
	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
