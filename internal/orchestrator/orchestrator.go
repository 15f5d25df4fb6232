// Package orchestrator drives the recording lifecycle: creation, pipeline
// processing, retry, and deletion. It owns the per-recording state machine
// and guarantees single-flight processing per recording ID.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olayinkafad/plainly/internal/observe"
	"github.com/olayinkafad/plainly/internal/pipeline"
	"github.com/olayinkafad/plainly/internal/playback"
	"github.com/olayinkafad/plainly/internal/recording"
	"github.com/olayinkafad/plainly/internal/settings"
)

// ErrAlreadyProcessing is returned by Process and Retry when the recording is
// already being processed.
var ErrAlreadyProcessing = errors.New("orchestrator: recording already processing")

// ErrNotRetryable is returned by Retry when the recording is not in the
// failed state.
var ErrNotRetryable = errors.New("orchestrator: only failed recordings can be retried")

// Option is a functional option for configuring an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Orchestrator coordinates stores, the playback player, and the pipeline.
// It is safe for concurrent use.
type Orchestrator struct {
	store    recording.Store
	settings settings.Store
	player   *playback.Player
	proc     *pipeline.Processor
	audio    AudioSource
	metrics  *observe.Metrics

	mu       sync.Mutex
	inflight map[string]struct{}

	// wg tracks fire-and-forget title generation goroutines so shutdown and
	// tests can wait for them.
	wg sync.WaitGroup
}

// New returns an [Orchestrator] wired to the given collaborators.
func New(store recording.Store, settingsStore settings.Store, player *playback.Player, proc *pipeline.Processor, audio AudioSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		settings: settingsStore,
		player:   player,
		proc:     proc,
		audio:    audio,
		metrics:  observe.DefaultMetrics(),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateFromCapture registers a freshly captured recording in the processing
// state and returns it. Processing itself is a separate step so the client
// sees the recording immediately.
func (o *Orchestrator) CreateFromCapture(ctx context.Context, audioBlobURL string, durationSec float64) (*recording.Recording, error) {
	rec := &recording.Recording{
		ID:           uuid.NewString(),
		Title:        pipeline.PlaceholderTitle,
		AudioBlobURL: audioBlobURL,
		DurationSec:  durationSec,
		CreatedAt:    time.Now().UTC(),
		Status:       recording.StatusProcessing,
	}
	if err := o.store.Add(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Process runs the full pipeline for the recording and persists the outcome:
// completed with outputs, or failed with the stage error message. Returns
// [ErrAlreadyProcessing] when a run for the same ID is in flight and
// [recording.ErrNotFound] when the recording does not exist.
func (o *Orchestrator) Process(ctx context.Context, id string) (*recording.Recording, error) {
	if err := o.acquire(id); err != nil {
		return nil, err
	}
	defer o.release(id)

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, recording.ErrNotFound
	}

	o.metrics.RecordingsInFlight.Add(ctx, 1)
	defer o.metrics.RecordingsInFlight.Add(ctx, -1)

	audio, mimeType, err := o.audio.Fetch(ctx, rec.AudioBlobURL)
	if err != nil {
		return o.fail(ctx, id, "audio reference could not be read")
	}

	res, err := o.proc.Process(ctx, audio, filepath.Base(rec.AudioBlobURL), mimeType)
	if err != nil {
		return o.fail(ctx, id, failureMessage(err))
	}

	outputs, err := buildOutputs(res)
	if err != nil {
		return o.fail(ctx, id, "generated outputs could not be encoded")
	}

	status := recording.StatusCompleted
	updated, err := o.store.Update(ctx, id, recording.Patch{
		Status:  &status,
		Outputs: outputs,
	})
	if err != nil {
		return nil, err
	}

	if !res.TooShort {
		o.spawnTitle(id, res.Transcript, res.Summary.Overview)
	}
	return updated, nil
}

// ProcessAsync runs Process in the background. The run is tracked by the
// same wait group as title generation, so [Orchestrator.Wait] covers it.
// Failures are persisted on the recording and logged, not returned.
func (o *Orchestrator) ProcessAsync(id string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx := context.Background()
		if _, err := o.Process(ctx, id); err != nil {
			observe.Logger(ctx).Error("background processing failed",
				"recording_id", id, "error", err)
		}
	}()
}

// Retry moves a failed recording back to processing and re-runs the pipeline
// from the stored audio reference. Only failed recordings are retryable.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*recording.Recording, error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, recording.ErrNotFound
	}
	if rec.Status != recording.StatusFailed {
		return nil, fmt.Errorf("%w: status %s", ErrNotRetryable, rec.Status)
	}

	status := recording.StatusProcessing
	if _, err := o.store.Update(ctx, id, recording.Patch{Status: &status}); err != nil {
		return nil, err
	}
	return o.Process(ctx, id)
}

// Rename sets a new title on the recording.
func (o *Orchestrator) Rename(ctx context.Context, id, title string) (*recording.Recording, error) {
	return o.store.Update(ctx, id, recording.Patch{Title: &title})
}

// Delete removes the recording, stopping its playback first. Deleting an
// absent ID succeeds. When the last recording disappears, the fresh-start
// settings flag is raised for the client.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.player.StopIf(id)

	if err := o.store.Delete(ctx, id); err != nil {
		return err
	}

	remaining, err := o.store.GetAll(ctx)
	if err != nil {
		observe.Logger(ctx).Warn("fresh-start check failed", "error", err)
		return nil
	}
	if len(remaining) == 0 {
		if err := o.settings.Set(ctx, settings.KeyFreshStart, "true"); err != nil {
			observe.Logger(ctx).Warn("failed to set fresh-start flag", "error", err)
		}
	}
	return nil
}

// Wait blocks until all background title generations have finished. Call
// during shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// spawnTitle generates a title in the background and patches it onto the
// recording. Failures only log; the recording keeps its placeholder title.
func (o *Orchestrator) spawnTitle(id, transcript, summary string) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx := context.Background()
		title := o.proc.GenerateTitle(ctx, transcript, summary)
		if title == pipeline.PlaceholderTitle {
			return
		}

		// Don't clobber a title the user set while generation was running.
		rec, err := o.store.Get(ctx, id)
		if err != nil || rec == nil || rec.Title != pipeline.PlaceholderTitle {
			return
		}
		if _, err := o.store.Update(ctx, id, recording.Patch{Title: &title}); err != nil {
			observe.Logger(ctx).Warn("failed to save generated title",
				"recording_id", id, "error", err)
		}
	}()
}

// fail marks the recording failed with the given message. Store errors take
// precedence so callers see why nothing was persisted.
func (o *Orchestrator) fail(ctx context.Context, id, message string) (*recording.Recording, error) {
	o.metrics.RecordOutcome(ctx, "failed")

	status := recording.StatusFailed
	updated, err := o.store.Update(ctx, id, recording.Patch{
		Status:          &status,
		ProcessingError: &message,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// failureMessage extracts the client-safe message from a pipeline error.
func failureMessage(err error) string {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return "processing failed"
}

// buildOutputs converts a pipeline result into store artifacts. Too-short
// runs complete with the placeholder text and an empty transcript.
func buildOutputs(res *pipeline.ProcessResult) (*recording.Outputs, error) {
	if res.TooShort {
		return &recording.Outputs{
			Summary:    recording.TextArtifact(pipeline.TooShortOutput),
			Transcript: recording.TextArtifact(""),
		}, nil
	}

	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return nil, err
	}
	transcriptJSON, err := json.Marshal(res.Structured)
	if err != nil {
		return nil, err
	}
	return &recording.Outputs{
		Summary:    recording.Artifact{Raw: summaryJSON},
		Transcript: recording.Artifact{Raw: transcriptJSON},
	}, nil
}

// acquire claims the single-flight slot for id.
func (o *Orchestrator) acquire(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[id]; busy {
		return ErrAlreadyProcessing
	}
	o.inflight[id] = struct{}{}
	return nil
}

// release frees the single-flight slot for id.
func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, id)
}
