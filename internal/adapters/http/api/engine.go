package api

import (
	"net/http"

	"github.com/okian/taskrouter/internal/domain/detect"
	"github.com/okian/taskrouter/internal/domain/model"
)

// detectRequest mirrors the OpenAPI schema for POST /detect.
type detectRequest struct {
	Text      string   `json:"text"`
	Threshold *float64 `json:"threshold" validate:"omitempty,gte=0,lte=1"`
	Verbose   bool     `json:"verbose"`
	// Vocabulary replaces the directory's skill names for this call.
	Vocabulary []string `json:"vocabulary" validate:"omitempty,dive,required"`
}

type skillRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type proficiencyRequest struct {
	SkillID          string `json:"skill_id" validate:"required"`
	ProficiencyLevel int    `json:"proficiency_level" validate:"min=1,max=5"`
}

type candidateRequest struct {
	UserID        string               `json:"user_id" validate:"required"`
	Name          string               `json:"name"`
	ContactHandle string               `json:"contact_handle"`
	Skills        []proficiencyRequest `json:"skills" validate:"dive"`
	ActivityScore float64              `json:"activity_score" validate:"gte=0,lte=100"`
	WorkloadScore float64              `json:"workload_score" validate:"gte=0,lte=100"`
}

// rankRequest mirrors the OpenAPI schema for POST /rank. Without explicit
// candidates the team roster is used; without a catalog the directory's.
type rankRequest struct {
	TaskText       string             `json:"task_text"`
	RequiredSkills []string           `json:"required_skills"`
	Candidates     []candidateRequest `json:"candidates" validate:"dive"`
	Catalog        []skillRequest     `json:"catalog" validate:"omitempty,dive"`
	TeamID         string             `json:"team_id" validate:"required_without=Candidates"`
	ExcludeUserID  string             `json:"exclude_user_id"`
}

// EngineHandler exposes the detector and ranker synchronously.
type EngineHandler struct {
	deps Dependencies
}

// NewEngineHandler creates a new engine handler.
func NewEngineHandler(deps Dependencies) *EngineHandler {
	return &EngineHandler{deps: deps}
}

// HandleDetect handles POST /detect requests.
func (h *EngineHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	const op = "api.detect"
	var req detectRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}

	var opts []detect.CallOption
	if req.Threshold != nil {
		opts = append(opts, detect.Threshold(*req.Threshold))
	}
	if req.Verbose {
		opts = append(opts, detect.Verbose())
	}
	if req.Vocabulary != nil {
		opts = append(opts, detect.Vocabulary(req.Vocabulary))
	}

	res, err := h.deps.Detect(r.Context(), req.Text, opts...)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleRank handles POST /rank requests.
func (h *EngineHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.rank"
	var req rankRequest
	if err := decode(w, r, op, &req); err != nil {
		writeFailure(w, err)
		return
	}

	ctx := r.Context()
	candidates := toCandidates(req.Candidates)
	if len(req.Candidates) == 0 && req.TeamID != "" {
		pool, err := h.deps.CandidatePool(ctx, req.TeamID, req.ExcludeUserID)
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		candidates = pool
	}

	var catalog []model.Skill
	if req.Catalog != nil {
		catalog = make([]model.Skill, 0, len(req.Catalog))
		for _, s := range req.Catalog {
			catalog = append(catalog, model.Skill{ID: s.ID, Name: s.Name, Description: s.Description})
		}
	}

	scores, err := h.deps.Rank(ctx, req.TaskText, req.RequiredSkills, candidates, catalog)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func toCandidates(in []candidateRequest) []model.Candidate {
	out := make([]model.Candidate, 0, len(in))
	for _, c := range in {
		profiles := make([]model.UserSkillProfile, 0, len(c.Skills))
		for _, p := range c.Skills {
			profiles = append(profiles, model.UserSkillProfile{
				UserID:           c.UserID,
				SkillID:          p.SkillID,
				ProficiencyLevel: p.ProficiencyLevel,
			})
		}
		out = append(out, model.Candidate{
			UserID:        c.UserID,
			Name:          c.Name,
			ContactHandle: c.ContactHandle,
			Skills:        profiles,
			ActivityScore: c.ActivityScore,
			WorkloadScore: c.WorkloadScore,
		})
	}
	return out
}
