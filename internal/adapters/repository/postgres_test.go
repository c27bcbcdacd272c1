package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/taskrouter/internal/domain/model"
)

func TestMapError(t *testing.T) {
	Convey("Given driver errors", t, func() {
		Convey("Then no rows should map to not found", func() {
			So(errors.Is(mapError(sql.ErrNoRows), ErrNotFound), ShouldBeTrue)
		})

		Convey("Then unique violations should map to duplicate", func() {
			err := mapError(&pgconn.PgError{Code: uniqueViolationCode})
			So(errors.Is(err, ErrDuplicate), ShouldBeTrue)
		})

		Convey("Then constraint violations should map to invalid record", func() {
			for _, code := range []string{foreignKeyViolationCode, checkViolationCode, notNullViolationCode} {
				err := mapError(&pgconn.PgError{Code: code})
				So(errors.Is(err, ErrInvalidRecord), ShouldBeTrue)
			}
		})

		Convey("Then other errors should pass through", func() {
			boom := errors.New("boom")
			So(mapError(boom), ShouldEqual, boom)
			So(mapError(nil), ShouldBeNil)
		})
	})
}

// TestPostgres runs against a real database when DATABASE_URL is set.
func TestPostgres(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := OpenPostgres(ctx, url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema: %v", err)
	}

	suffix := uuid.NewString()[:8]
	team := "team-" + suffix
	user := "user-" + suffix
	skill := "skill-" + suffix

	seed := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO skills (id, name) VALUES ($1, $1)`, []any{skill}},
		{`INSERT INTO users (id, name) VALUES ($1, 'Test User')`, []any{user}},
		{`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`, []any{team, user}},
		{`INSERT INTO user_skills (user_id, skill_id, proficiency_level) VALUES ($1, $2, 4)`, []any{user, skill}},
	}
	for _, s := range seed {
		if _, err := db.ExecContext(ctx, s.query, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	Convey("Given the Postgres directory and task store", t, func() {
		dir := NewPostgresDirectory(db)
		store := NewPostgresTaskStore(db)

		Convey("Then the seeded roster should be readable", func() {
			members, err := dir.TeamMembers(ctx, team)
			So(err, ShouldBeNil)
			So(len(members), ShouldEqual, 1)
			So(members[0].Skills[0].ProficiencyLevel, ShouldEqual, 4)

			So(dir.Touch(ctx, user, time.Now()), ShouldBeNil)
			_, err = dir.TeamMembers(ctx, "missing-"+suffix)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Then tasks should round trip and assign", func() {
			task := model.Task{
				ID:          uuid.NewString(),
				MessageID:   fmt.Sprintf("msg-%s", suffix),
				TeamID:      team,
				Text:        "Please fix the login bug",
				Skills:      []string{skill},
				Confidence:  0.75,
				Suggestions: []model.AssigneeScore{{UserID: user, TotalScore: 70}},
				Status:      model.TaskPending,
				CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
			}
			So(store.Create(ctx, task), ShouldBeNil)
			So(errors.Is(store.Create(ctx, task), ErrDuplicate), ShouldBeTrue)

			got, err := store.Get(ctx, task.ID)
			So(err, ShouldBeNil)
			So(got.Skills, ShouldResemble, []string{skill})
			So(got.Suggestions[0].UserID, ShouldEqual, user)

			assigned, prev, err := store.Assign(ctx, task.ID, user, time.Now())
			So(err, ShouldBeNil)
			So(prev, ShouldBeEmpty)
			So(assigned.Status, ShouldEqual, model.TaskAssigned)

			members, err := dir.TeamMembers(ctx, team)
			So(err, ShouldBeNil)
			So(members[0].ActiveTasks, ShouldEqual, 1)

			list, err := store.List(ctx, ListFilter{TeamID: team})
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
		})
	})
}
