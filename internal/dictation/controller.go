// Package dictation orchestrates the voice-to-estimate pipeline: capture a
// dictation, transcribe the recording, parse the transcript against the price
// catalog, merge the proposals into the working estimate, and persist.
//
// The [Controller] is the single writer of the working [estimate.Document].
// Every mutating entry point takes the controller mutex, which gives the
// document the single-logical-thread discipline it requires while HTTP
// handlers, the capture engine, and the auto-save loop all call in
// concurrently.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/velesk/smetka/internal/estimate"
	"github.com/velesk/smetka/internal/estimate/eststore"
	"github.com/velesk/smetka/internal/observe"
	"github.com/velesk/smetka/internal/pricelist"
	"github.com/velesk/smetka/pkg/provider/parse"
	"github.com/velesk/smetka/pkg/provider/transcribe"
)

var (
	// ErrParseInFlight is returned when a parse request arrives while a
	// previous one is still running. The client should retry after the
	// current parse settles.
	ErrParseInFlight = errors.New("dictation: parse already in flight")

	// ErrEmptyTranscript is returned when there is nothing to parse.
	ErrEmptyTranscript = errors.New("dictation: transcript is empty")

	// ErrStaleParse is returned when a parse response arrives after the
	// working document was replaced (loaded or cleared) and the result was
	// discarded.
	ErrStaleParse = errors.New("dictation: parse result discarded, document changed")
)

// transcribeTimeout bounds a single transcription round-trip regardless of
// the caller's context.
const transcribeTimeout = 2 * time.Minute

// Notification is an asynchronous warning surfaced to the UI, e.g. a failed
// auto-save.
type Notification struct {
	Message string
	Err     error
	Time    time.Time
}

// ParseOutcome is the result of one parse-and-merge round.
type ParseOutcome struct {
	// Transcript is the text that was parsed.
	Transcript string

	// Report describes what the merge changed.
	Report estimate.MergeReport

	// UnknownItems are dictated positions the parser could not match to the
	// price catalog.
	UnknownItems []parse.UnknownItem
}

// Config carries the controller's collaborators.
type Config struct {
	Store       eststore.Store
	Catalog     pricelist.Store
	Transcriber transcribe.Provider
	Parser      parse.Provider

	// FallbackParser, when set, is tried after Parser fails. Typically the
	// local pattern-matching parser.
	FallbackParser parse.Provider

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Controller drives one user's dictation workflow. Safe for concurrent use.
type Controller struct {
	store          eststore.Store
	catalog        pricelist.Store
	transcriber    transcribe.Provider
	parser         parse.Provider
	fallbackParser parse.Provider
	metrics        *observe.Metrics
	log            *slog.Logger

	mu            sync.Mutex
	doc           *estimate.Document
	transcript    string
	parseInFlight bool

	// generation is bumped whenever the working document is replaced.
	// A parse that started under an older generation discards its result.
	generation uint64

	notifications chan Notification
}

// New creates a Controller with an empty working document.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("dictation: Store must not be nil")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("dictation: Catalog must not be nil")
	}
	if cfg.Parser == nil {
		return nil, errors.New("dictation: Parser must not be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		store:          cfg.Store,
		catalog:        cfg.Catalog,
		transcriber:    cfg.Transcriber,
		parser:         cfg.Parser,
		fallbackParser: cfg.FallbackParser,
		metrics:        cfg.Metrics,
		log:            cfg.Logger,
		doc:            estimate.New(),
		notifications:  make(chan Notification, 16),
	}, nil
}

// Notifications returns the channel carrying asynchronous warnings. The
// channel is buffered; when nobody drains it, further notifications are
// dropped rather than blocking the pipeline.
func (c *Controller) Notifications() <-chan Notification {
	return c.notifications
}

// ── transcript handling ──────────────────────────────────────────────────────

// Transcript returns the accumulated transcript.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// AppendTranscript appends a finalized capture result, space-joined.
func (c *Controller) AppendTranscript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transcript == "" {
		c.transcript = text
	} else {
		c.transcript += " " + text
	}
}

// ClearTranscript discards the accumulated transcript.
func (c *Controller) ClearTranscript() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = ""
}

// Transcribe sends a finished recording to the transcription provider and
// appends the text to the transcript. The call is bounded to two minutes.
func (c *Controller) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if c.transcriber == nil {
		return "", errors.New("dictation: no transcription provider configured")
	}
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	start := time.Now()
	text, err := c.transcriber.Transcribe(ctx, audio, mimeType)
	c.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderError(ctx, "transcribe", "transcribe")
		return "", fmt.Errorf("dictation: transcribe: %w", err)
	}
	c.metrics.RecordProviderRequest(ctx, "transcribe", "transcribe", "ok")

	c.AppendTranscript(text)
	return text, nil
}

// ── parsing ──────────────────────────────────────────────────────────────────

// ParseTranscript runs the accumulated transcript through the parser and
// merges the proposals into the working document.
//
// Only one parse may be in flight at a time; concurrent calls fail fast with
// [ErrParseInFlight]. If the working document is replaced while the parser is
// running, the result is discarded and [ErrStaleParse] returned.
func (c *Controller) ParseTranscript(ctx context.Context) (*ParseOutcome, error) {
	c.mu.Lock()
	if c.parseInFlight {
		c.mu.Unlock()
		return nil, ErrParseInFlight
	}
	transcript := strings.TrimSpace(c.transcript)
	if transcript == "" {
		c.mu.Unlock()
		return nil, ErrEmptyTranscript
	}
	c.parseInFlight = true
	gen := c.generation
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.parseInFlight = false
		c.mu.Unlock()
	}()

	items, err := c.catalog.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("dictation: load catalog: %w", err)
	}
	catalog := pricelist.Catalog(items)

	result, err := c.parse(ctx, transcript, catalog)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.log.Warn("discarding stale parse result", "generation", gen, "current", c.generation)
		return nil, ErrStaleParse
	}

	report := c.doc.MergeProposals(result.Rooms)
	c.metrics.RecordMerge(ctx, report.ItemsAdded, len(report.Rejected))

	return &ParseOutcome{
		Transcript:   transcript,
		Report:       report,
		UnknownItems: result.UnknownItems,
	}, nil
}

// parse calls the primary parser and falls back to the local one on failure.
func (c *Controller) parse(ctx context.Context, transcript string, catalog []parse.CatalogItem) (*parse.Result, error) {
	start := time.Now()
	result, err := c.parser.Parse(ctx, transcript, catalog)
	c.metrics.ParseDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil {
		c.metrics.RecordProviderRequest(ctx, "parser", "parse", "ok")
		return result, nil
	}

	c.metrics.RecordProviderError(ctx, "parser", "parse")
	if c.fallbackParser == nil {
		return nil, fmt.Errorf("dictation: parse: %w", err)
	}

	c.log.Warn("parser failed, using fallback", "error", err)
	result, fbErr := c.fallbackParser.Parse(ctx, transcript, catalog)
	if fbErr != nil {
		return nil, fmt.Errorf("dictation: parse: %w", errors.Join(err, fbErr))
	}
	c.metrics.RecordProviderRequest(ctx, "fallback", "parse", "ok")
	return result, nil
}

// ── document access ──────────────────────────────────────────────────────────

// Snapshot runs fn with the working document under the controller mutex.
// fn must not retain the document or any of its slices past the call.
func (c *Controller) Snapshot(fn func(*estimate.Document)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.doc)
}

// SetClientInfo updates the client fields of the working document.
func (c *Controller) SetClientInfo(info estimate.ClientInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc.SetClientInfo(info)
}

// SetLastStep records the wizard step for draft resumption.
func (c *Controller) SetLastStep(step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc.SetLastStep(step)
}

// AddItem adds one manually entered line item.
func (c *Controller) AddItem(entry estimate.ItemEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.AddItem(entry)
}

// ── persistence ──────────────────────────────────────────────────────────────

// Complete persists the working document as completed: a fresh document is
// created, a loaded one updated.
func (c *Controller) Complete(ctx context.Context) (*eststore.Estimate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	var (
		stored *eststore.Estimate
		err    error
	)
	if c.doc.Editing() {
		stored, err = c.doc.Update(ctx, c.store)
	} else {
		stored, err = c.doc.Create(ctx, c.store)
	}
	c.metrics.PersistDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	c.metrics.RecordEstimateSaved(ctx, string(eststore.StatusCompleted))
	return stored, nil
}

// SaveDraft persists the working document as a draft. A document with no
// client name and no rooms is skipped and (nil, nil) returned.
func (c *Controller) SaveDraft(ctx context.Context) (*eststore.Estimate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	stored, err := c.doc.SaveDraft(ctx, c.store)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	c.metrics.PersistDuration.Record(ctx, time.Since(start).Seconds())
	c.metrics.RecordEstimateSaved(ctx, string(eststore.StatusDraft))
	return stored, nil
}

// Load replaces the working document with a stored estimate. Any in-flight
// parse result is invalidated.
func (c *Controller) Load(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.doc.Load(ctx, c.store, id); err != nil {
		return err
	}
	c.generation++
	c.transcript = ""
	return nil
}

// Reset discards the working document and transcript, invalidating any
// in-flight parse result.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc.Clear()
	c.generation++
	c.transcript = ""
}

// ── auto-save ────────────────────────────────────────────────────────────────

// RunAutoSave saves a draft every interval until ctx is cancelled. Failures
// are logged and pushed to [Controller.Notifications]; they never stop the
// loop.
func (c *Controller) RunAutoSave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.SaveDraft(ctx); err != nil {
				c.log.Error("auto-save failed", "error", err)
				c.notify(Notification{
					Message: "auto-save failed",
					Err:     err,
					Time:    time.Now(),
				})
			}
		}
	}
}

// notify pushes a notification without ever blocking.
func (c *Controller) notify(n Notification) {
	select {
	case c.notifications <- n:
	default:
	}
}
