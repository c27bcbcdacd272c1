// Package rank orders candidate assignees for a task by combining skill
// fit, recent activity and current workload into one score.
package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/pkg/logger"
)

// Component weights; they sum to 1.
const (
	SkillWeight    = 0.65
	ActivityWeight = 0.15
	WorkloadWeight = 0.20
)

const (
	maxScore          = 100.0
	generalSkillScore = 50.0
	maxLevel          = 5
	reasonSkillLimit  = 2

	lowWorkloadThreshold     = 60
	veryLowWorkloadThreshold = 80
	recentActivityThreshold  = 90
)

// Reason fragments.
const (
	ReasonGeneralTask     = "General task (no specific skills required)"
	ReasonNoMatch         = "No matching skills for this task"
	ReasonAvailable       = "Team member available for work"
	ReasonVeryLowWorkload = "Very low current workload"
	ReasonLowWorkload     = "Low current workload"
	ReasonRecentlyActive  = "Recently active"
)

// Ranker is stateless apart from its options and safe for concurrent use.
type Ranker struct {
	parallelism    int
	tieBreakOnUser bool
	log            logger.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithParallelism scores up to n candidates concurrently. Values below 2
// score sequentially.
func WithParallelism(n int) Option {
	return func(r *Ranker) {
		r.parallelism = n
	}
}

// WithUserIDTieBreak orders equal totals by ascending user ID instead of
// input order.
func WithUserIDTieBreak() Option {
	return func(r *Ranker) {
		r.tieBreakOnUser = true
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l logger.Logger) Option {
	return func(r *Ranker) {
		r.log = l
	}
}

// New builds a Ranker.
func New(opts ...Option) *Ranker {
	r := &Ranker{parallelism: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every candidate for the task and returns them sorted by
// descending total score. An empty candidate list yields an empty result.
func (r *Ranker) Rank(ctx context.Context, taskText string, requiredSkills []string,
	candidates []model.Candidate, catalog []model.Skill,
) []model.AssigneeScore {
	out := make([]model.AssigneeScore, len(candidates))
	if len(candidates) == 0 {
		return out
	}

	rel := buildRelevance(taskText, requiredSkills, catalog)
	hasCatalog := len(rel.skills) > 0

	if r.parallelism > 1 && len(candidates) > 1 {
		var g errgroup.Group
		g.SetLimit(r.parallelism)
		for i := range candidates {
			g.Go(func() error {
				out[i] = score(candidates[i], rel, hasCatalog)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range candidates {
			out[i] = score(candidates[i], rel, hasCatalog)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		if r.tieBreakOnUser {
			return out[i].UserID < out[j].UserID
		}
		return false
	})

	if r.log != nil {
		r.log.Debug(ctx, "ranked candidates",
			logger.Int("candidates", len(out)),
			logger.Int("relevant_skills", rel.count()),
			logger.String("top_user", out[0].UserID),
			logger.Float64("top_score", out[0].TotalScore),
		)
	}
	return out
}

func (m *relevanceMap) count() int {
	n := 0
	for _, w := range m.weights {
		if w > 0 {
			n++
		}
	}
	return n
}

// score evaluates one candidate against the shared relevance map.
func score(c model.Candidate, rel *relevanceMap, hasCatalog bool) model.AssigneeScore {
	activity := clamp(c.ActivityScore)
	workload := clamp(c.WorkloadScore)

	res := model.AssigneeScore{
		UserID:        c.UserID,
		Name:          c.Name,
		ContactHandle: c.ContactHandle,
		ActivityScore: activity,
		WorkloadScore: workload,
		MatchedSkills: []string{},
	}

	var parts []string
	switch {
	case rel.empty():
		res.SkillMatchScore = generalSkillScore
		if hasCatalog {
			parts = append(parts, ReasonGeneralTask)
		}
	default:
		levels := make(map[string]int, len(c.Skills))
		for _, p := range c.Skills {
			levels[p.SkillID] = max(levels[p.SkillID], p.ProficiencyLevel)
		}

		var acc float64
		var fragments []string
		for i, s := range rel.skills {
			w := rel.weights[i]
			if w == 0 {
				continue
			}
			level, ok := levels[s.ID]
			if !ok {
				continue
			}
			level = min(max(level, 0), maxLevel)
			acc += float64(w) * float64(level) / maxLevel
			res.MatchedSkills = append(res.MatchedSkills, s.Name)
			if len(fragments) < reasonSkillLimit {
				fragments = append(fragments, fmt.Sprintf("%s (level %d)", s.Name, level))
			}
		}
		res.SkillMatchScore = clamp(maxScore * acc / float64(rel.total))
		if len(fragments) > 0 {
			parts = append(parts, "Matches skills: "+strings.Join(fragments, ", "))
		}
	}

	res.TotalScore = clamp(res.SkillMatchScore*SkillWeight +
		activity*ActivityWeight +
		(maxScore-workload)*WorkloadWeight)

	switch free := maxScore - workload; {
	case free > veryLowWorkloadThreshold:
		parts = append(parts, ReasonVeryLowWorkload)
	case free > lowWorkloadThreshold:
		parts = append(parts, ReasonLowWorkload)
	}
	if activity > recentActivityThreshold {
		parts = append(parts, ReasonRecentlyActive)
	}

	switch {
	case len(parts) > 0:
		res.MatchReason = strings.Join(parts, ", ")
	case !rel.empty():
		res.MatchReason = ReasonNoMatch
	default:
		res.MatchReason = ReasonAvailable
	}
	return res
}
