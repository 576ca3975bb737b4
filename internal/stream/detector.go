// Package stream segments the raw line stream from the game into narrative
// batches and prompts, using an inactivity-timeout heuristic.
//
// MUD servers emit no explicit prompt delimiter. Empirically, a prompt is
// followed by a noticeably longer silence (waiting for player input) than the
// inter-line gap within a burst of narrative text, so "line age exceeds the
// configured threshold" is the segmentation rule.
package stream

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Line is one timestamped line of raw game text.
type Line struct {
	Text       string
	ReceivedAt time.Time
}

// Prompt is a line classified as the trailing status line of a batch.
type Prompt struct {
	// Text is the raw prompt line.
	Text string
	// Fields holds named-group extraction results; nil when no pattern is
	// configured or the pattern did not match.
	Fields map[string]string
	// Matched reports whether the configured pattern matched the line.
	// Always false when no pattern is configured.
	Matched bool
	// At is the arrival time of the line.
	At time.Time
}

// Detector consumes timestamped lines and finalizes the trailing line of each
// burst as the prompt once it has aged past the configured timeout.
//
// ProcessLine and CheckTimeout may race (transport goroutine vs. timer); all
// mutable state is guarded by a mutex. Within one batch, the narrative
// callback always fires before the prompt callback.
type Detector struct {
	mu          sync.Mutex
	timeout     time.Duration
	historySize int
	logger      *zap.Logger

	pattern     *regexp.Regexp
	patternExpr string

	pending        *Line
	batch          []string
	batchMatches   int  // lines in the current batch the pattern matched
	doubtful       bool // advisory: the pattern's matches look like false positives
	invalidPattern bool // advisory: the pattern failed to match a finalized prompt

	history []Prompt

	onNarrative      func(text string)
	onPrompt         func(p Prompt)
	onPatternInvalid func(line string)
}

// NewDetector creates a Detector.
//
// Precondition: timeout > 0; historySize >= 1; logger must be non-nil.
func NewDetector(timeout time.Duration, historySize int, logger *zap.Logger) *Detector {
	if timeout <= 0 {
		panic("stream.NewDetector: timeout must be > 0")
	}
	if historySize < 1 {
		panic("stream.NewDetector: historySize must be >= 1")
	}
	if logger == nil {
		panic("stream.NewDetector: logger must not be nil")
	}
	return &Detector{
		timeout:     timeout,
		historySize: historySize,
		logger:      logger,
	}
}

// OnNarrative registers the narrative-batch callback. The text is the batch's
// lines joined with newlines, excluding the prompt; it is never empty (the
// callback is skipped for single-line batches).
func (d *Detector) OnNarrative(fn func(text string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onNarrative = fn
}

// OnPrompt registers the prompt callback, fired after the narrative callback
// for the same batch.
func (d *Detector) OnPrompt(fn func(p Prompt)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPrompt = fn
}

// OnPatternInvalid registers a callback fired when a configured pattern fails
// to match a line the timeout heuristic chose as the prompt.
func (d *Detector) OnPatternInvalid(fn func(line string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPatternInvalid = fn
}

// SetPattern configures the prompt extraction pattern. An empty expression
// clears it.
//
// Postcondition: On compile failure the previous pattern is kept and a
// non-nil error is returned; the detector is never left without its
// last-known-good pattern. On success the advisory flags are cleared.
func (d *Detector) SetPattern(expr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if expr == "" {
		d.pattern = nil
		d.patternExpr = ""
		d.doubtful = false
		d.invalidPattern = false
		return nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("stream.SetPattern: compiling %q: %w", expr, err)
	}
	d.pattern = re
	d.patternExpr = expr
	d.doubtful = false
	d.invalidPattern = false
	return nil
}

// Pattern returns the configured extraction pattern expression; empty if none.
func (d *Detector) Pattern() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.patternExpr
}

// PatternDoubtful reports whether the configured pattern matched in a suspect
// way: more than one line of a batch, or a line that was followed by further
// text inside the same batch. Advisory only; never blocks operation.
func (d *Detector) PatternDoubtful() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doubtful
}

// PatternInvalid reports whether the timeout heuristic finalized a prompt the
// configured pattern failed to match, suggesting the pattern itself is wrong.
// Advisory only.
func (d *Detector) PatternInvalid() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invalidPattern
}

// History returns the most recently finalized prompts, oldest first, bounded
// by the configured history size.
func (d *Detector) History() []Prompt {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Prompt(nil), d.history...)
}

// Reset clears the pending line, the batch, and the advisory flags. The
// configured pattern is kept.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
	d.batch = nil
	d.batchMatches = 0
	d.doubtful = false
	d.invalidPattern = false
}

// ProcessLine appends a line to the pending batch. If the previously pending
// line has aged past the timeout, it is first finalized as the prompt of the
// batch collected so far, and the new line starts the next batch.
func (d *Detector) ProcessLine(text string, at time.Time) {
	d.mu.Lock()

	var emit []func()
	if d.pending != nil && at.Sub(d.pending.ReceivedAt) > d.timeout {
		emit = d.finalizeLocked()
	}

	if d.pending != nil {
		// The previous candidate was ordinary narrative after all.
		d.batch = append(d.batch, d.pending.Text)
		if d.pattern != nil && d.batchMatches > 0 {
			// Text arrived after a pattern match within the same batch:
			// the match was likely a false positive.
			d.doubtful = true
		}
	}
	d.pending = &Line{Text: text, ReceivedAt: at}
	if d.pattern != nil && d.pattern.MatchString(text) {
		d.batchMatches++
		if d.batchMatches > 1 {
			d.doubtful = true
		}
	}
	d.mu.Unlock()

	for _, fn := range emit {
		fn()
	}
}

// CheckTimeout finalizes the pending line as a prompt if it has aged past the
// timeout. Must be invoked periodically so a conversation-ending prompt that
// is never followed by more text is still finalized.
func (d *Detector) CheckTimeout(now time.Time) {
	d.mu.Lock()
	var emit []func()
	if d.pending != nil && now.Sub(d.pending.ReceivedAt) > d.timeout {
		emit = d.finalizeLocked()
	}
	d.mu.Unlock()

	for _, fn := range emit {
		fn()
	}
}

// Start launches a goroutine invoking CheckTimeout every interval and returns
// an idempotent stop function.
//
// Precondition: interval > 0.
func (d *Detector) Start(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.CheckTimeout(time.Now())
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}

// finalizeLocked turns the pending line into a prompt for the current batch
// and resets per-batch state. Caller must hold d.mu.
//
// Postcondition: Returns callbacks to invoke after unlocking, narrative
// first, in order.
func (d *Detector) finalizeLocked() []func() {
	p := Prompt{Text: d.pending.Text, At: d.pending.ReceivedAt}

	patternConfigured := d.pattern != nil
	if patternConfigured {
		p.Fields = extractFields(d.pattern, p.Text)
		p.Matched = p.Fields != nil
		if !p.Matched {
			d.invalidPattern = true
		}
	}

	narrative := strings.Join(d.batch, "\n")
	d.pending = nil
	d.batch = nil
	d.batchMatches = 0

	d.history = append(d.history, p)
	if len(d.history) > d.historySize {
		d.history = d.history[len(d.history)-d.historySize:]
	}

	var emit []func()
	if narrative != "" && d.onNarrative != nil {
		fn := d.onNarrative
		emit = append(emit, func() { fn(narrative) })
	}
	if d.onPrompt != nil {
		fn := d.onPrompt
		emit = append(emit, func() { fn(p) })
	}
	if patternConfigured && !p.Matched && d.onPatternInvalid != nil {
		fn := d.onPatternInvalid
		line := p.Text
		emit = append(emit, func() { fn(line) })
		d.logger.Debug("prompt pattern did not match finalized prompt",
			zap.String("line", line),
		)
	}
	return emit
}

// extractFields runs re against text and maps named capture groups to their
// submatches. Unnamed groups are ignored.
//
// Postcondition: Returns nil if the pattern does not match; otherwise a
// non-nil (possibly empty) map.
func extractFields(re *regexp.Regexp, text string) map[string]string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	fields := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" || i >= len(m) {
			continue
		}
		fields[name] = m[i]
	}
	return fields
}
