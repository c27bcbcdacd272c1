// Package lexicon holds the keyword tables and rule weights used by the
// task detector. A Lexicon is plain data: detectors copy what they receive,
// so several detectors with different tables can run side by side.
package lexicon

// Points are expressed on a 0..100 integer scale so that additive scoring
// does not accumulate floating point drift. Confidence = points / Scale.
const Scale = 100

// Weights assigns a point value to each detection rule.
type Weights struct {
	Imperative int `yaml:"imperative" validate:"gte=0,lte=100"`
	Verb       int `yaml:"verb" validate:"gte=0,lte=100"`
	Request    int `yaml:"request" validate:"gte=0,lte=100"`
	Delegation int `yaml:"delegation" validate:"gte=0,lte=100"`
	Deadline   int `yaml:"deadline" validate:"gte=0,lte=100"`
	Priority   int `yaml:"priority" validate:"gte=0,lte=100"`
	Skill      int `yaml:"skill" validate:"gte=0,lte=100"`
}

// Lexicon is the full set of keyword tables consulted by the detector.
type Lexicon struct {
	Imperatives      []string `yaml:"imperatives"`
	TaskVerbs        []string `yaml:"task_verbs"`
	Requests         []string `yaml:"requests"`
	Delegations      []string `yaml:"delegations"`
	DeadlineKeywords []string `yaml:"deadline_keywords"`
	HighPriority     []string `yaml:"high_priority"`
	MediumPriority   []string `yaml:"medium_priority"`
	LowPriority      []string `yaml:"low_priority"`

	Weights Weights `yaml:"weights"`

	// Ceiling caps the accumulated points; confidence never reaches 1.
	Ceiling int `yaml:"ceiling" validate:"min=1,max=100"`
	// Threshold is the default confidence needed to call a text a task.
	Threshold float64 `yaml:"threshold" validate:"gte=0,lte=1"`
}

// Default returns a fresh copy of the built-in English tables.
func Default() Lexicon {
	return Lexicon{
		Imperatives: []string{
			"please", "make sure", "let's", "don't forget", "dont forget",
			"remember to", "help", "consider", "be sure to", "kindly",
		},
		TaskVerbs: []string{
			"do", "make", "create", "write", "prepare", "update", "review", "fix",
			"implement", "build", "check", "send", "schedule", "organize", "plan",
			"finish", "complete", "deploy", "test", "draft", "submit", "set up",
			"investigate", "analyze", "design", "document", "refactor", "migrate",
		},
		Requests: []string{
			"can you", "could you", "would you", "will you", "need to", "needs to",
			"should", "must", "have to", "has to", "required", "requires",
			"i need", "we need", "is it possible", "would it be possible",
		},
		Delegations: []string{
			"assign", "assigned", "delegate", "handle", "take care of", "own",
			"lead", "responsible for", "in charge of", "take over", "pick up",
			"follow up",
		},
		DeadlineKeywords: []string{
			"today", "tomorrow", "tonight", "next week", "this week", "end of day",
			"end of week", "next month",
			"q1", "q2", "q3", "q4",
			"january", "february", "march", "april", "may", "june", "july",
			"august", "september", "october", "november", "december",
			"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		},
		HighPriority: []string{
			"urgent", "asap", "critical", "emergency", "immediately", "high priority",
			"top priority", "blocker", "right away",
		},
		MediumPriority: []string{
			"important", "soon", "medium priority", "when possible", "this week",
		},
		LowPriority: []string{
			"when you have time", "no rush", "low priority", "whenever", "eventually",
			"nice to have",
		},
		Weights: Weights{
			Imperative: 30,
			Verb:       20,
			Request:    25,
			Delegation: 20,
			Deadline:   15,
			Priority:   10,
			Skill:      10,
		},
		Ceiling:   95,
		Threshold: 0.4,
	}
}

// Clone returns a deep copy so callers can mutate tables without affecting
// detectors built from the original.
func (l Lexicon) Clone() Lexicon {
	c := l
	c.Imperatives = clone(l.Imperatives)
	c.TaskVerbs = clone(l.TaskVerbs)
	c.Requests = clone(l.Requests)
	c.Delegations = clone(l.Delegations)
	c.DeadlineKeywords = clone(l.DeadlineKeywords)
	c.HighPriority = clone(l.HighPriority)
	c.MediumPriority = clone(l.MediumPriority)
	c.LowPriority = clone(l.LowPriority)
	return c
}

func clone(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
