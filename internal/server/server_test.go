package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olayinkafad/plainly/internal/orchestrator"
	"github.com/olayinkafad/plainly/internal/pipeline"
	"github.com/olayinkafad/plainly/internal/playback"
	"github.com/olayinkafad/plainly/internal/recording"
	"github.com/olayinkafad/plainly/internal/server"
	"github.com/olayinkafad/plainly/internal/settings"
	"github.com/olayinkafad/plainly/pkg/provider/llm"
	llmmock "github.com/olayinkafad/plainly/pkg/provider/llm/mock"
	"github.com/olayinkafad/plainly/pkg/provider/stt"
	sttmock "github.com/olayinkafad/plainly/pkg/provider/stt/mock"
)

const summaryJSON = `{"title":"Plumber","overview":"Call the plumber.","key_points":["call plumber"],"action_items":[],"confidence_notes":{"possible_missed_words":false,"mixed_language":false,"noisy_audio":false,"reason":""}}`

const transcriptJSON = `{"segments":[{"text":"Remember to call the plumber tomorrow."}],"confidence_notes":{"possible_missed_words":false,"mixed_language":false,"noisy_audio":false,"reason":""}}`

func respondByPrompt(req llm.CompletionRequest) string {
	switch {
	case strings.Contains(req.SystemPrompt, "summarisation"):
		return summaryJSON
	case strings.Contains(req.SystemPrompt, "titling"):
		return "Plumber Reminder"
	default:
		return transcriptJSON
	}
}

// mapSource is an AudioSource backed by a map, for tests.
type mapSource struct {
	data map[string][]byte
}

func (s *mapSource) Fetch(_ context.Context, url string) ([]byte, string, error) {
	audio, ok := s.data[url]
	if !ok {
		return nil, "", fmt.Errorf("no audio at %q", url)
	}
	return audio, "audio/webm", nil
}

type fixture struct {
	handler http.Handler
	orch    *orchestrator.Orchestrator
	store   *recording.MemoryStore
	prefs   *settings.MemoryStore
	player  *playback.Player
	stt     *sttmock.Provider
	llm     *llmmock.Provider
	source  *mapSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  recording.NewMemoryStore(),
		prefs:  settings.NewMemoryStore(),
		player: playback.NewPlayer(),
		stt: &sttmock.Provider{Result: &stt.Result{
			Text:        "Remember to call the plumber tomorrow.",
			DurationSec: 4.2,
		}},
		llm:    &llmmock.Provider{RespondFunc: respondByPrompt},
		source: &mapSource{data: make(map[string][]byte)},
	}
	proc := pipeline.New(f.stt, f.llm)
	f.orch = orchestrator.New(f.store, f.prefs, f.player, proc, f.source)
	f.handler = server.New(f.orch, f.store, f.prefs, f.player, proc).Handler()
	return f
}

// postAudio sends a multipart request with an audio part of the given size.
func (f *fixture) postAudio(t *testing.T, path string, size int, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "note.webm")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte{0x42}, size)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// postJSON sends a JSON request.
func (f *fixture) postJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestProcessRecording_TooShort(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.postAudio(t, "/process-recording", 500, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["transcript"] != "" {
		t.Errorf("transcript = %q, want empty", body["transcript"])
	}
	if body["output"] != "Recording too short to process..." {
		t.Errorf("output = %q", body["output"])
	}
	if f.stt.CallCount() != 0 || f.llm.CallCount() != 0 {
		t.Error("providers were called for too-short audio")
	}
}

func TestProcessRecording_NoSpeech(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.stt.Result = &stt.Result{Text: "you"}

	rec := f.postAudio(t, "/process-recording", 2000, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["error"] != "No speech detected in recording" {
		t.Errorf("error = %q", body["error"])
	}
	if body["transcript"] != "" || body["output"] != "" {
		t.Errorf("transcript/output = %q/%q, want empty", body["transcript"], body["output"])
	}
}

func TestProcessRecording_DefaultFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.postAudio(t, "/process-recording", 2000, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Transcript           string                        `json:"transcript"`
		Summary              pipeline.StructuredSummary    `json:"summary"`
		StructuredTranscript pipeline.StructuredTranscript `json:"structuredTranscript"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Transcript != "Remember to call the plumber tomorrow." {
		t.Errorf("transcript = %q", body.Transcript)
	}
	if body.Summary.Title != "Plumber" {
		t.Errorf("summary.title = %q", body.Summary.Title)
	}
	if len(body.StructuredTranscript.Segments) != 1 {
		t.Errorf("structuredTranscript segments = %d", len(body.StructuredTranscript.Segments))
	}
}

func TestProcessRecording_LegacyFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.postAudio(t, "/process-recording", 2000, map[string]string{"format": "summary"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]string](t, rec)
	if body["transcript"] == "" {
		t.Error("missing transcript")
	}

	// The output field is a JSON string holding the artifact.
	var summary pipeline.StructuredSummary
	if err := json.Unmarshal([]byte(body["output"]), &summary); err != nil {
		t.Fatalf("output is not artifact JSON: %v", err)
	}
	if summary.Title != "Plumber" {
		t.Errorf("output title = %q", summary.Title)
	}
}

func TestProcessRecording_InvalidFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.postAudio(t, "/process-recording", 2000, map[string]string{"format": "haiku"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProcessRecording_MissingAudio(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest("POST", "/process-recording", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProcessRecording_ProviderStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"auth", &stt.StatusError{StatusCode: 401, Body: "bad key"}, http.StatusUnauthorized},
		{"rate limit", &stt.StatusError{StatusCode: 429, Body: "slow down"}, http.StatusTooManyRequests},
		{"provider", &stt.StatusError{StatusCode: 503, Body: "down"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.stt.Err = tt.err

			rec := f.postAudio(t, "/process-recording", 2000, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestProcessRecording_LLMStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"auth", &llm.StatusError{StatusCode: 401, Body: "bad key"}, http.StatusUnauthorized},
		{"rate limit", &llm.StatusError{StatusCode: 429, Body: "slow down"}, http.StatusTooManyRequests},
		{"provider", &llm.StatusError{StatusCode: 503, Body: "down"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.llm.Err = tt.err

			rec := f.postAudio(t, "/process-recording", 2000, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if f.stt.CallCount() != 1 {
				t.Errorf("stt called %d times, want 1", f.stt.CallCount())
			}
		})
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.postAudio(t, "/transcribe", 2000, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["transcript"] != "Remember to call the plumber tomorrow." {
		t.Errorf("transcript = %q", body["transcript"])
	}
	if f.llm.CallCount() != 0 {
		t.Error("transcribe endpoint called the llm")
	}
}

func TestGenerateTitle_AlwaysOK(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	t.Run("with transcript", func(t *testing.T) {
		rec := f.postJSON(t, "POST", "/generate-title", map[string]string{"transcript": "call the plumber"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if body := decode[map[string]string](t, rec); body["title"] != "Plumber Reminder" {
			t.Errorf("title = %q", body["title"])
		}
	})

	t.Run("garbage body still 200", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/generate-title", strings.NewReader("not json"))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if body := decode[map[string]string](t, rec); body["title"] != pipeline.PlaceholderTitle {
			t.Errorf("title = %q, want placeholder", body["title"])
		}
	})
}

func TestRecordingsLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.source.data["blob-1"] = bytes.Repeat([]byte{0x42}, 2000)

	// Create kicks off background processing.
	rec := f.postJSON(t, "POST", "/recordings", map[string]any{"audioBlobUrl": "blob-1", "durationSec": 4.2})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	created := decode[recording.Recording](t, rec)
	if created.Status != recording.StatusProcessing {
		t.Errorf("created status = %q, want processing", created.Status)
	}

	f.orch.Wait()

	// List shows the completed recording.
	rec = f.get(t, "/recordings")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	recs := decode[[]recording.Recording](t, rec)
	if len(recs) != 1 || recs[0].Status != recording.StatusCompleted {
		t.Fatalf("list = %+v, want one completed recording", recs)
	}

	// Rename.
	rec = f.postJSON(t, "PATCH", "/recordings/"+created.ID, map[string]string{"title": "Plumbing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[recording.Recording](t, rec); got.Title != "Plumbing" {
		t.Errorf("patched title = %q", got.Title)
	}

	// Delete is idempotent and raises the fresh-start flag on the last one.
	req := httptest.NewRequest("DELETE", "/recordings/"+created.ID, nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/recordings/"+created.ID, nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("second delete status = %d, want 204", w.Code)
	}
	if v, _ := f.prefs.Get(context.Background(), settings.KeyFreshStart); v != "true" {
		t.Errorf("fresh_start = %q, want true", v)
	}
}

func TestPatchRecording_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.postJSON(t, "PATCH", "/recordings/absent", map[string]string{"title": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRetryEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.stt.Result = &stt.Result{Text: "you"}
	f.source.data["blob-1"] = bytes.Repeat([]byte{0x42}, 2000)

	created, err := f.orch.CreateFromCapture(context.Background(), "blob-1", 4.2)
	if err != nil {
		t.Fatalf("CreateFromCapture: %v", err)
	}
	if _, err := f.orch.Process(context.Background(), created.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	// Retrying while failed, after the provider recovers, completes.
	f.stt.Result = &stt.Result{Text: "Remember to call the plumber tomorrow."}
	rec := f.postJSON(t, "POST", "/recordings/"+created.ID+"/retry", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[recording.Recording](t, rec); got.Status != recording.StatusCompleted {
		t.Errorf("status after retry = %q, want completed", got.Status)
	}

	// Retrying a completed recording conflicts.
	rec = f.postJSON(t, "POST", "/recordings/"+created.ID+"/retry", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second retry status = %d, want 409", rec.Code)
	}
	f.orch.Wait()
}

func TestPlaybackEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.source.data["blob-1"] = bytes.Repeat([]byte{0x42}, 2000)
	created, err := f.orch.CreateFromCapture(context.Background(), "blob-1", 4.2)
	if err != nil {
		t.Fatalf("CreateFromCapture: %v", err)
	}

	rec := f.postJSON(t, "POST", "/playback/play/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("play status = %d", rec.Code)
	}
	st := decode[map[string]any](t, rec)
	if st["recordingId"] != created.ID {
		t.Errorf("recordingId = %v", st["recordingId"])
	}

	rec = f.postJSON(t, "POST", "/playback/seek", map[string]float64{"positionSec": 12})
	if st := decode[map[string]any](t, rec); st["positionSec"] != 12.0 {
		t.Errorf("positionSec = %v, want 12", st["positionSec"])
	}

	rec = f.postJSON(t, "POST", "/playback/speed", nil)
	if st := decode[map[string]any](t, rec); st["speed"] != 1.5 {
		t.Errorf("speed = %v, want 1.5", st["speed"])
	}

	rec = f.postJSON(t, "POST", "/playback/close", nil)
	if st := decode[map[string]any](t, rec); st["recordingId"] != "" {
		t.Errorf("recordingId after close = %v", st["recordingId"])
	}

	rec = f.postJSON(t, "POST", "/playback/play/absent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("play absent status = %d, want 404", rec.Code)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.postJSON(t, "PUT", "/settings/theme", map[string]string{"value": "dark"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put status = %d, want 204", rec.Code)
	}

	rec = f.get(t, "/settings/theme")
	if body := decode[map[string]string](t, rec); body["value"] != "dark" {
		t.Errorf("value = %q", body["value"])
	}

	rec = f.postJSON(t, "POST", "/milestones/10/seen", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("milestone status = %d, want 204", rec.Code)
	}
	seen, _ := f.prefs.Seen(context.Background(), settings.MilestoneKey(10))
	if !seen {
		t.Error("milestone not marked seen")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.get(t, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.get(t, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
