package api

import "net/http"

// DirectoryHandler serves the skills catalog and team candidate pools.
type DirectoryHandler struct {
	deps Dependencies
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(deps Dependencies) *DirectoryHandler {
	return &DirectoryHandler{deps: deps}
}

// HandleSkills handles GET /skills.
func (h *DirectoryHandler) HandleSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.deps.Skills(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.skills", err))
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

// HandleCandidates handles GET /teams/{id}/candidates?exclude=U.
func (h *DirectoryHandler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	pool, err := h.deps.CandidatePool(r.Context(), r.PathValue("id"), r.URL.Query().Get("exclude"))
	if err != nil {
		writeFailure(w, Wrap("api.candidates", err))
		return
	}
	writeJSON(w, http.StatusOK, pool)
}
