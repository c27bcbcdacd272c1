package detect

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/taskrouter/internal/domain/model"
)

// Rule names, also used as metric label values.
const (
	RuleImperative = "imperative"
	RuleVerb       = "verb"
	RuleRequest    = "request"
	RuleDelegation = "delegation"
	RuleDeadline   = "deadline"
	RulePriority   = "priority"
	RuleSkill      = "skill"
)

// evaluation is the per-call state shared by the rules.
type evaluation struct {
	text       string
	lower      string
	tokens     map[string]struct{}
	vocabulary []string
	result     *model.DetectionResult
	evidence   string // what the last matching rule saw, for verbose logs
}

// rule is one additive check: a predicate, its point value and whatever it
// writes into the result when it fires.
type rule struct {
	name   string
	points int
	match  func(e *evaluation) bool
}

func (d *Detector) buildRules() []rule {
	lex := d.lexicon
	return []rule{
		{name: RuleImperative, points: lex.Weights.Imperative, match: func(e *evaluation) bool {
			p, ok := firstSubstring(e.lower, d.imperatives)
			e.evidence = p
			return ok
		}},
		{name: RuleVerb, points: lex.Weights.Verb, match: func(e *evaluation) bool {
			p, ok := firstWord(e.lower, d.verbs)
			e.evidence = p
			return ok
		}},
		{name: RuleRequest, points: lex.Weights.Request, match: func(e *evaluation) bool {
			p, ok := firstSubstring(e.lower, d.requests)
			e.evidence = p
			return ok
		}},
		{name: RuleDelegation, points: lex.Weights.Delegation, match: func(e *evaluation) bool {
			p, ok := firstWord(e.lower, d.delegations)
			e.evidence = p
			return ok
		}},
		{name: RuleDeadline, points: lex.Weights.Deadline, match: d.matchDeadline},
		{name: RulePriority, points: lex.Weights.Priority, match: d.matchPriority},
		{name: RuleSkill, points: lex.Weights.Skill, match: matchSkills},
	}
}

// matchDeadline tries each recognizer in order; errors only move on to the
// next one.
func (d *Detector) matchDeadline(e *evaluation) bool {
	base := d.now()
	for _, r := range d.recognizers {
		span, err := recognize(r, e.text, base)
		if err != nil || span == "" {
			continue
		}
		e.result.Deadline = span
		e.evidence = span
		return true
	}
	return false
}

// recognize turns a recognizer panic into an error.
func recognize(r DateRecognizer, text string, base time.Time) (span string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("date recognizer panic: %v", p)
		}
	}()
	return r.Recognize(text, base)
}

func (d *Detector) matchPriority(e *evaluation) bool {
	levels := []struct {
		p     model.Priority
		words []string
	}{
		{model.PriorityHigh, d.high},
		{model.PriorityMedium, d.medium},
		{model.PriorityLow, d.low},
	}
	for _, l := range levels {
		if kw, ok := firstSubstring(e.lower, l.words); ok {
			e.result.Priority = l.p
			e.evidence = kw
			return true
		}
	}
	return false
}

// matchSkills collects every vocabulary name mentioned in the text. A name
// matches as a substring, or when all of its words are tokens of the text.
func matchSkills(e *evaluation) bool {
	seen := make(map[string]struct{}, len(e.vocabulary))
	for _, name := range e.vocabulary {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if !mentions(e, key) {
			continue
		}
		seen[key] = struct{}{}
		e.result.SuggestedSkills = append(e.result.SuggestedSkills, strings.TrimSpace(name))
	}
	e.evidence = strings.Join(e.result.SuggestedSkills, ",")
	return len(e.result.SuggestedSkills) > 0
}

func mentions(e *evaluation, key string) bool {
	if strings.Contains(e.lower, key) {
		return true
	}
	words := strings.Fields(key)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if _, ok := e.tokens[w]; !ok {
			return false
		}
	}
	return true
}
