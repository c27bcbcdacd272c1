package rank

import (
	"strings"
	"unicode"

	"github.com/okian/taskrouter/internal/domain/model"
)

// Relevance weights.
const (
	relevanceRequired  = 10
	relevanceMentioned = 8
	relevancePerToken  = 2
	relevanceLoose     = 3

	minTokenLen = 4
)

var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "will": {},
}

// relevanceMap holds one weight per catalog entry, in catalog order. A zero
// weight means the skill is not relevant to the task.
type relevanceMap struct {
	skills  []model.Skill
	weights []int
	total   int
}

func (m *relevanceMap) empty() bool { return m.total == 0 }

func (m *relevanceMap) raise(i, w int) {
	if w > m.weights[i] {
		m.total += w - m.weights[i]
		m.weights[i] = w
	}
}

// buildRelevance computes the shared relevance map for one ranking call.
// Required names that are not in the catalog are ignored.
func buildRelevance(taskText string, required []string, catalog []model.Skill) *relevanceMap {
	m := &relevanceMap{skills: uniqueSkills(catalog)}
	m.weights = make([]int, len(m.skills))
	lowerTask := strings.ToLower(taskText)

	names := make([]string, len(m.skills))
	for i, s := range m.skills {
		names[i] = strings.ToLower(strings.TrimSpace(s.Name))
	}

	for _, req := range required {
		req = strings.ToLower(strings.TrimSpace(req))
		if req == "" {
			continue
		}
		for i, name := range names {
			if name == req {
				m.raise(i, relevanceRequired)
			}
		}
	}

	for i, name := range names {
		if name != "" && strings.Contains(lowerTask, name) {
			m.raise(i, relevanceMentioned)
		}
	}

	taskTokens := contentTokenSet(lowerTask)
	for i, s := range m.skills {
		if m.weights[i] > 0 {
			continue
		}
		count := 0
		for t := range contentTokenSet(strings.ToLower(s.Name + " " + s.Description)) {
			if _, ok := taskTokens[t]; ok {
				count++
			}
		}
		if count > 0 {
			m.raise(i, count*relevancePerToken)
		}
	}

	if m.empty() {
		// Loose pass. Short names can match unrelated words here.
		for i, name := range names {
			if name == "" {
				continue
			}
			for t := range taskTokens {
				if strings.Contains(t, name) || strings.Contains(name, t) {
					m.raise(i, relevanceLoose)
					break
				}
			}
		}
	}
	return m
}

// uniqueSkills drops repeated catalog entries, keeping the first.
func uniqueSkills(catalog []model.Skill) []model.Skill {
	out := make([]model.Skill, 0, len(catalog))
	seen := make(map[string]struct{}, len(catalog))
	for _, s := range catalog {
		k := skillKey(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

func skillKey(s model.Skill) string {
	if s.ID != "" {
		return s.ID
	}
	return "name:" + strings.ToLower(strings.TrimSpace(s.Name))
}

func words(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}

// contentTokenSet returns the words of at least minTokenLen runes that are
// not stop words.
func contentTokenSet(lower string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(lower) {
		if len([]rune(w)) < minTokenLen {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
