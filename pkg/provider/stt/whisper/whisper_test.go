package whisper_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olayinkafad/plainly/pkg/provider/stt"
	"github.com/olayinkafad/plainly/pkg/provider/stt/whisper"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty api key, got nil")
	}
}

func TestTranscribe_SubmitsMultipartAndParsesVerboseResponse(t *testing.T) {
	t.Parallel()

	var gotAuth, gotFormat, gotModel, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFormat = r.FormValue("response_format")
		gotModel = r.FormValue("model")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			defer f.Close()
			data, _ := io.ReadAll(f)
			gotFile = hdr.Filename + ":" + string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"text": "hello world",
			"duration": 3.2,
			"segments": [
				{"id": 0, "start": 0.0, "end": 1.5, "text": "hello"},
				{"id": 1, "start": 1.5, "end": 3.2, "text": "world"}
			]
		}`)
	}))
	defer srv.Close()

	p, err := whisper.New("sk-test", whisper.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transcribe(context.Background(), stt.Request{
		Audio:        strings.NewReader("AUDIO"),
		Filename:     "note.m4a",
		MIMEType:     "audio/mp4",
		WantSegments: true,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization=%q, want %q", gotAuth, "Bearer sk-test")
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format=%q, want verbose_json", gotFormat)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model=%q, want whisper-1", gotModel)
	}
	if gotFile != "note.m4a:AUDIO" {
		t.Errorf("file=%q, want %q", gotFile, "note.m4a:AUDIO")
	}

	if res.Text != "hello world" {
		t.Errorf("Text=%q, want %q", res.Text, "hello world")
	}
	if res.DurationSec != 3.2 {
		t.Errorf("DurationSec=%v, want 3.2", res.DurationSec)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(res.Segments))
	}
	if res.Segments[1].Start != 1.5 || res.Segments[1].Text != "world" {
		t.Errorf("segment[1]=%+v", res.Segments[1])
	}
}

func TestTranscribe_PlainFormatWithoutSegments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "json" {
			t.Errorf("response_format=%q, want json", got)
		}
		io.WriteString(w, `{"text": "just text"}`)
	}))
	defer srv.Close()

	p, err := whisper.New("sk-test", whisper.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transcribe(context.Background(), stt.Request{
		Audio: strings.NewReader("A"),
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "just text" {
		t.Errorf("Text=%q, want %q", res.Text, "just text")
	}
	if res.Segments != nil {
		t.Errorf("Segments=%v, want nil", res.Segments)
	}
}

func TestTranscribe_BackendErrorSurfacesStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"rate_limited", http.StatusTooManyRequests},
		{"server_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "backend says no", tt.status)
			}))
			defer srv.Close()

			p, err := whisper.New("sk-test", whisper.WithBaseURL(srv.URL))
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			_, err = p.Transcribe(context.Background(), stt.Request{Audio: strings.NewReader("A")})
			var se *stt.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error %v is not a *stt.StatusError", err)
			}
			if se.StatusCode != tt.status {
				t.Errorf("StatusCode=%d, want %d", se.StatusCode, tt.status)
			}
		})
	}
}
