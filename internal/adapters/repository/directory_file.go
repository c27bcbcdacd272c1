package repository

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/okian/taskrouter/internal/domain/model"
)

// directoryFile is the on-disk layout of a directory:
//
//	skills:
//	  - id: go
//	    name: Go
//	members:
//	  - user_id: alice
//	    team_id: platform
//	    name: Alice
//	    last_active: 2024-05-01T09:00:00Z
//	    active_tasks: 1
//	    skills:
//	      - skill: go
//	        level: 5
type directoryFile struct {
	Skills  []skillRecord  `yaml:"skills" validate:"dive"`
	Members []memberRecord `yaml:"members" validate:"dive"`
}

type skillRecord struct {
	ID          string `yaml:"id" validate:"required"`
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
}

type memberRecord struct {
	UserID        string              `yaml:"user_id" validate:"required"`
	TeamID        string              `yaml:"team_id" validate:"required"`
	Name          string              `yaml:"name" validate:"required"`
	ContactHandle string              `yaml:"contact_handle"`
	LastActive    time.Time           `yaml:"last_active"`
	ActiveTasks   int                 `yaml:"active_tasks" validate:"gte=0"`
	Skills        []proficiencyRecord `yaml:"skills" validate:"dive"`
}

type proficiencyRecord struct {
	Skill string `yaml:"skill" validate:"required"`
	Level int    `yaml:"level" validate:"min=1,max=5"`
}

var validate = validator.New()

// LoadDirectoryFile reads a YAML directory from path.
func LoadDirectoryFile(path string) (*MemoryDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open directory file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadDirectory(f)
}

// LoadDirectory decodes and validates a YAML directory.
func LoadDirectory(r io.Reader) (*MemoryDirectory, error) {
	var file directoryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode directory: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	skills, err := file.catalog()
	if err != nil {
		return nil, err
	}
	members, err := file.roster(skills)
	if err != nil {
		return nil, err
	}
	return NewMemoryDirectory(skills, members), nil
}

func (f directoryFile) catalog() ([]model.Skill, error) {
	ids := make(map[string]struct{}, len(f.Skills))
	names := make(map[string]struct{}, len(f.Skills))
	out := make([]model.Skill, 0, len(f.Skills))
	for _, s := range f.Skills {
		if _, ok := ids[s.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate skill id %q", ErrInvalidRecord, s.ID)
		}
		name := strings.ToLower(s.Name)
		if _, ok := names[name]; ok {
			return nil, fmt.Errorf("%w: duplicate skill name %q", ErrInvalidRecord, s.Name)
		}
		ids[s.ID] = struct{}{}
		names[name] = struct{}{}
		out = append(out, model.Skill{ID: s.ID, Name: s.Name, Description: s.Description})
	}
	return out, nil
}

func (f directoryFile) roster(catalog []model.Skill) ([]model.Member, error) {
	known := make(map[string]struct{}, len(catalog))
	for _, s := range catalog {
		known[s.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(f.Members))
	out := make([]model.Member, 0, len(f.Members))
	for _, m := range f.Members {
		key := m.TeamID + "/" + m.UserID
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s listed twice in team %s", ErrInvalidRecord, m.UserID, m.TeamID)
		}
		seen[key] = struct{}{}

		profiles := make([]model.UserSkillProfile, 0, len(m.Skills))
		for _, p := range m.Skills {
			if _, ok := known[p.Skill]; !ok {
				return nil, fmt.Errorf("%w: %s references unknown skill %q", ErrInvalidRecord, m.UserID, p.Skill)
			}
			profiles = append(profiles, model.UserSkillProfile{
				UserID:           m.UserID,
				SkillID:          p.Skill,
				ProficiencyLevel: p.Level,
			})
		}
		out = append(out, model.Member{
			UserID:        m.UserID,
			TeamID:        m.TeamID,
			Name:          m.Name,
			ContactHandle: m.ContactHandle,
			Skills:        profiles,
			LastActive:    m.LastActive,
			ActiveTasks:   m.ActiveTasks,
		})
	}
	return out, nil
}
