// Package detect classifies free text as a delegable task and extracts its
// deadline, priority, required skills and context.
//
// Scoring is additive: each rule that fires contributes a fixed number of
// points, the total is capped below certainty and compared to a threshold.
package detect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/taskrouter/internal/domain/lexicon"
	"github.com/okian/taskrouter/internal/domain/model"
	"github.com/okian/taskrouter/pkg/logger"
)

// Detector is safe for concurrent use. Its tables are copied at
// construction and never change afterwards.
type Detector struct {
	lexicon     lexicon.Lexicon
	imperatives []string
	verbs       []string
	requests    []string
	delegations []string
	high        []string
	medium      []string
	low         []string

	vocabulary  []string
	threshold   float64
	recognizers []DateRecognizer
	splitter    SentenceSplitter
	fallback    SentenceSplitter
	log         logger.Logger
	onRuleHit   func(rule string)
	now         func() time.Time

	rules []rule
}

// Option configures a Detector.
type Option func(*Detector)

// WithLexicon replaces the keyword tables and weights.
func WithLexicon(l lexicon.Lexicon) Option {
	return func(d *Detector) {
		d.lexicon = l.Clone()
		d.threshold = l.Threshold
	}
}

// WithVocabulary sets the default skill vocabulary.
func WithVocabulary(names []string) Option {
	return func(d *Detector) {
		d.vocabulary = append([]string(nil), names...)
	}
}

// WithThreshold sets the default confidence threshold.
func WithThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.threshold = threshold
	}
}

// WithDateRecognizer sets the primary date recognizer. The keyword
// recognizer built from the lexicon always runs after it. Passing nil
// leaves only the keyword recognizer.
func WithDateRecognizer(r DateRecognizer) Option {
	return func(d *Detector) {
		d.recognizers = nil
		if r != nil {
			d.recognizers = []DateRecognizer{r}
		}
	}
}

// WithSentenceSplitter sets the sentence splitter. Passing nil selects the
// period splitter.
func WithSentenceSplitter(s SentenceSplitter) Option {
	return func(d *Detector) {
		d.splitter = s
		if s == nil {
			d.splitter = PeriodSplitter{}
		}
	}
}

// WithLogger sets the logger used in verbose mode.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		d.log = l
	}
}

// WithRuleHook registers a callback invoked with the name of every rule
// that contributes points.
func WithRuleHook(fn func(rule string)) Option {
	return func(d *Detector) {
		d.onRuleHit = fn
	}
}

// WithClock sets the reference time source for relative dates.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// New builds a detector. Defaults: the built-in lexicon, the natural
// language date recognizer and the punkt sentence splitter (the period
// splitter when the punkt model cannot be loaded).
func New(opts ...Option) *Detector {
	lex := lexicon.Default()
	d := &Detector{
		lexicon:     lex,
		threshold:   lex.Threshold,
		recognizers: []DateRecognizer{NewNaturalRecognizer()},
		fallback:    PeriodSplitter{},
		now:         time.Now,
	}
	if p, err := sharedPunkt(); err == nil {
		d.splitter = p
	} else {
		d.splitter = PeriodSplitter{}
	}

	for _, opt := range opts {
		opt(d)
	}

	d.imperatives = lowerAll(d.lexicon.Imperatives)
	d.verbs = lowerAll(d.lexicon.TaskVerbs)
	d.requests = lowerAll(d.lexicon.Requests)
	d.delegations = lowerAll(d.lexicon.Delegations)
	d.high = lowerAll(d.lexicon.HighPriority)
	d.medium = lowerAll(d.lexicon.MediumPriority)
	d.low = lowerAll(d.lexicon.LowPriority)
	d.recognizers = append(d.recognizers, NewKeywordRecognizer(d.lexicon.DeadlineKeywords))
	d.rules = d.buildRules()
	return d
}

// Threshold returns the default confidence threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

type callOptions struct {
	threshold  float64
	verbose    bool
	vocabulary []string
}

// CallOption adjusts a single Detect call.
type CallOption func(*callOptions)

// Threshold overrides the confidence threshold for one call.
func Threshold(t float64) CallOption {
	return func(o *callOptions) { o.threshold = t }
}

// Verbose logs every rule that fires at debug level.
func Verbose() CallOption {
	return func(o *callOptions) { o.verbose = true }
}

// Vocabulary overrides the skill vocabulary for one call.
func Vocabulary(names []string) CallOption {
	return func(o *callOptions) { o.vocabulary = names }
}

// Detect classifies text. It never fails: empty or whitespace-only text
// yields a non-task with zero confidence.
func (d *Detector) Detect(ctx context.Context, text string, opts ...CallOption) model.DetectionResult {
	o := callOptions{threshold: d.threshold, vocabulary: d.vocabulary}
	for _, opt := range opts {
		opt(&o)
	}

	result := model.DetectionResult{SuggestedSkills: []string{}}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return result
	}

	e := &evaluation{
		text:       trimmed,
		lower:      strings.ToLower(trimmed),
		vocabulary: o.vocabulary,
		result:     &result,
	}
	e.tokens = tokenSet(tokenize(e.lower))

	points := 0
	for _, r := range d.rules {
		e.evidence = ""
		if !r.match(e) {
			continue
		}
		points += r.points
		if d.onRuleHit != nil {
			d.onRuleHit(r.name)
		}
		if o.verbose && d.log != nil {
			d.log.Debug(ctx, "detection rule matched",
				logger.String("rule", r.name),
				logger.Int("points", r.points),
				logger.String("evidence", e.evidence),
			)
		}
	}

	points = min(points, d.lexicon.Ceiling)
	points = max(points, 0)
	result.Confidence = float64(points) / lexicon.Scale
	result.IsTask = result.Confidence >= o.threshold
	result.TaskText, result.Context = d.segment(trimmed)

	if o.verbose && d.log != nil {
		d.log.Debug(ctx, "detection finished",
			logger.Bool("is_task", result.IsTask),
			logger.Float64("confidence", result.Confidence),
			logger.Float64("threshold", o.threshold),
		)
	}
	return result
}

// segment returns the first sentence and the remaining sentences joined by
// a space. A splitter error or panic falls back to the period splitter.
func (d *Detector) segment(text string) (string, string) {
	parts, err := split(d.splitter, text)
	if err != nil || len(parts) == 0 {
		parts, _ = d.fallback.Split(text)
	}
	if len(parts) <= 1 {
		return text, ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func split(s SentenceSplitter, text string) (parts []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			parts, err = nil, fmt.Errorf("sentence splitter panic: %v", p)
		}
	}()
	return s.Split(text)
}
