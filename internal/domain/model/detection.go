package model

// Priority is the urgency extracted from a message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DetectionResult is the detector's verdict for a single text.
// Empty Deadline, Priority and Context mean the attribute was not found.
type DetectionResult struct {
	IsTask          bool     `json:"is_task"`
	Confidence      float64  `json:"confidence"`
	TaskText        string   `json:"task_text"`
	SuggestedSkills []string `json:"suggested_skills"`
	Deadline        string   `json:"deadline,omitempty"`
	Priority        Priority `json:"priority,omitempty"`
	Context         string   `json:"context,omitempty"`
}

// AssigneeScore is one ranked candidate.
type AssigneeScore struct {
	UserID          string   `json:"user_id"`
	Name            string   `json:"name"`
	ContactHandle   string   `json:"contact_handle,omitempty"`
	SkillMatchScore float64  `json:"skill_match_score"`
	ActivityScore   float64  `json:"activity_score"`
	WorkloadScore   float64  `json:"workload_score"`
	TotalScore      float64  `json:"total_score"`
	MatchReason     string   `json:"match_reason"`
	MatchedSkills   []string `json:"matched_skills"`
}
