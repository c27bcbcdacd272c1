package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/taskrouter/internal/domain/model"
)

// MemoryDirectory serves a catalog and rosters held in memory, usually
// loaded from a YAML file with LoadDirectoryFile.
type MemoryDirectory struct {
	mu      sync.RWMutex
	skills  []model.Skill
	members []model.Member
	teams   map[string][]int
}

var _ Directory = (*MemoryDirectory)(nil)

// NewMemoryDirectory builds a directory from already validated records.
// Members keep the given order within their team.
func NewMemoryDirectory(skills []model.Skill, members []model.Member) *MemoryDirectory {
	d := &MemoryDirectory{
		skills:  append([]model.Skill{}, skills...),
		members: make([]model.Member, 0, len(members)),
		teams:   make(map[string][]int),
	}
	for _, m := range members {
		d.teams[m.TeamID] = append(d.teams[m.TeamID], len(d.members))
		d.members = append(d.members, cloneMember(m))
	}
	return d
}

// Skills implements Directory.
func (d *MemoryDirectory) Skills(ctx context.Context) ([]model.Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Skill{}, d.skills...), nil
}

// TeamMembers implements Directory.
func (d *MemoryDirectory) TeamMembers(ctx context.Context, teamID string) ([]model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, ok := d.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("team %s: %w", teamID, ErrNotFound)
	}
	out := make([]model.Member, 0, len(idx))
	for _, i := range idx {
		out = append(out, cloneMember(d.members[i]))
	}
	return out, nil
}

// Teams lists the known team ids in sorted order.
func (d *MemoryDirectory) Teams() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.teams))
	for id := range d.teams {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Touch implements Directory. Older timestamps never move activity back.
func (d *MemoryDirectory) Touch(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.members {
		m := &d.members[i]
		if m.UserID == userID && at.After(m.LastActive) {
			m.LastActive = at
		}
	}
	return nil
}

// AdjustActiveTasks implements Directory.
func (d *MemoryDirectory) AdjustActiveTasks(ctx context.Context, userID string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.members {
		m := &d.members[i]
		if m.UserID != userID {
			continue
		}
		m.ActiveTasks += delta
		if m.ActiveTasks < 0 {
			m.ActiveTasks = 0
		}
	}
	return nil
}

func cloneMember(m model.Member) model.Member {
	c := m
	c.Skills = append([]model.UserSkillProfile{}, m.Skills...)
	return c
}
