package model

import "time"

// Skill is an immutable catalog entry. Names compare case-insensitively.
type Skill struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// UserSkillProfile is one proficiency record for a (user, skill) pair.
// ProficiencyLevel is a self-reported rank in [1,5].
type UserSkillProfile struct {
	UserID           string `json:"user_id" yaml:"user_id"`
	SkillID          string `json:"skill_id" yaml:"skill_id"`
	ProficiencyLevel int    `json:"proficiency_level" yaml:"level"`
}

// Candidate is a person eligible for assignment, built fresh per ranking
// call with precomputed activity and workload scores.
type Candidate struct {
	UserID        string             `json:"user_id"`
	Name          string             `json:"name"`
	ContactHandle string             `json:"contact_handle,omitempty"`
	Skills        []UserSkillProfile `json:"skills"`
	ActivityScore float64            `json:"activity_score"`
	WorkloadScore float64            `json:"workload_score"`
}

// Member is a team roster entry as held by the directory.
type Member struct {
	UserID        string             `json:"user_id" yaml:"user_id"`
	TeamID        string             `json:"team_id" yaml:"team_id"`
	Name          string             `json:"name" yaml:"name"`
	ContactHandle string             `json:"contact_handle,omitempty" yaml:"contact_handle,omitempty"`
	Skills        []UserSkillProfile `json:"skills" yaml:"skills"`
	LastActive    time.Time          `json:"last_active" yaml:"last_active"`
	ActiveTasks   int                `json:"active_tasks" yaml:"active_tasks"`
}

// SkillNames returns the names of the given catalog entries in order.
func SkillNames(catalog []Skill) []string {
	names := make([]string, 0, len(catalog))
	for _, s := range catalog {
		names = append(names, s.Name)
	}
	return names
}
