package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olayinkafad/plainly/internal/pipeline"
	"github.com/olayinkafad/plainly/internal/playback"
	"github.com/olayinkafad/plainly/internal/recording"
	"github.com/olayinkafad/plainly/internal/settings"
)

// ---------------------------------------------------------------------------
// Capture endpoints
// ---------------------------------------------------------------------------

// processResponse is the modern response shape of POST /process-recording
// when no format selector is given.
type processResponse struct {
	Transcript           string                        `json:"transcript"`
	Summary              pipeline.StructuredSummary    `json:"summary"`
	StructuredTranscript pipeline.StructuredTranscript `json:"structuredTranscript"`
}

// legacyResponse is the response shape used with a format selector and for
// too-short results.
type legacyResponse struct {
	Transcript string `json:"transcript"`
	Output     string `json:"output"`
}

// readAudioUpload extracts the "audio" multipart part. A missing part is an
// invalid-input pipeline error so the capture endpoints report it as 400.
func readAudioUpload(r *http.Request) ([]byte, string, string, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", "", &pipeline.Error{Class: pipeline.ClassInvalidInput, Message: "invalid multipart request", Err: err}
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, "", "", &pipeline.Error{Class: pipeline.ClassInvalidInput, Message: "missing audio file", Err: err}
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return nil, "", "", &pipeline.Error{Class: pipeline.ClassInvalidInput, Message: "unreadable audio file", Err: err}
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return audio, header.Filename, mimeType, nil
}

func (s *Server) handleProcessRecording(w http.ResponseWriter, r *http.Request) {
	audio, filename, mimeType, err := readAudioUpload(r)
	if err != nil {
		writeProcessError(w, r, err)
		return
	}

	format := r.FormValue("format")
	if format == "" {
		res, err := s.proc.Process(r.Context(), audio, filename, mimeType)
		if err != nil {
			writeProcessError(w, r, err)
			return
		}
		if res.TooShort {
			writeJSON(w, http.StatusOK, legacyResponse{Output: pipeline.TooShortOutput})
			return
		}
		writeJSON(w, http.StatusOK, processResponse{
			Transcript:           res.Transcript,
			Summary:              res.Summary,
			StructuredTranscript: res.Structured,
		})
		return
	}

	kind := pipeline.Kind(format)
	if !kind.IsValid() {
		writeProcessError(w, r, &pipeline.Error{Class: pipeline.ClassInvalidInput, Message: "invalid format " + format})
		return
	}

	tr, err := s.proc.Transcribe(r.Context(), audio, filename, mimeType, kind == pipeline.KindTranscript)
	if err != nil {
		writeProcessError(w, r, err)
		return
	}
	if tr.TooShort {
		writeJSON(w, http.StatusOK, legacyResponse{Output: pipeline.TooShortOutput})
		return
	}

	raw, err := s.proc.GenerateOne(r.Context(), tr.Text, tr.Segments, kind)
	if err != nil {
		writeProcessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, legacyResponse{Transcript: tr.Text, Output: string(raw)})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, filename, mimeType, err := readAudioUpload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tr, err := s.proc.Transcribe(r.Context(), audio, filename, mimeType, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcript": tr.Text})
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Transcript string `json:"transcript"`
		Summary    string `json:"summary"`
	}
	// Title generation never fails: a bad body just means no source text.
	_ = json.NewDecoder(r.Body).Decode(&body)

	title := s.proc.GenerateTitle(r.Context(), body.Transcript, body.Summary)
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

// ---------------------------------------------------------------------------
// Recording library
// ---------------------------------------------------------------------------

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.GetAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []recording.Recording{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCreateRecording(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AudioBlobURL string  `json:"audioBlobUrl"`
		DurationSec  float64 `json:"durationSec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.AudioBlobURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "audioBlobUrl is required"})
		return
	}

	rec, err := s.orch.CreateFromCapture(r.Context(), body.AudioBlobURL, body.DurationSec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.orch.ProcessAsync(rec.ID)

	writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, r, recording.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePatchRecording(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title            *string `json:"title"`
		LastViewedFormat *string `json:"lastViewedFormat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	rec, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), recording.Patch{
		Title:            body.Title,
		LastViewedFormat: body.LastViewedFormat,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetryRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.orch.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ---------------------------------------------------------------------------
// Playback
// ---------------------------------------------------------------------------

// playbackState is the wire shape of the player state.
type playbackState struct {
	RecordingID string  `json:"recordingId"`
	PositionSec float64 `json:"positionSec"`
	Speed       float64 `json:"speed"`
}

func toPlaybackState(st playback.State) playbackState {
	return playbackState{
		RecordingID: st.RecordingID,
		PositionSec: st.PositionSec,
		Speed:       st.Speed,
	}
}

func (s *Server) handlePlaybackState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPlaybackState(s.player.State()))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, r, recording.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toPlaybackState(s.player.Play(id)))
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PositionSec float64 `json:"positionSec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	writeJSON(w, http.StatusOK, toPlaybackState(s.player.Seek(body.PositionSec)))
}

func (s *Server) handleCycleSpeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPlaybackState(s.player.CycleSpeed()))
}

func (s *Server) handleClosePlayback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toPlaybackState(s.player.Close()))
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, err := s.settings.Get(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := s.settings.Set(r.Context(), chi.URLParam(r, "key"), body.Value); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMilestoneSeen(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid milestone"})
		return
	}
	if err := s.settings.MarkSeen(r.Context(), settings.MilestoneKey(n)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Operational
// ---------------------------------------------------------------------------

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
