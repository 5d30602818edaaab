package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velesk/smetka/pkg/audio"
)

func testWAV(t *testing.T, samples int, rate int) []byte {
	t.Helper()
	pcm := make([]byte, samples*2)
	return audio.EncodeWAV(pcm, rate)
}

func TestProvider_Transcribe(t *testing.T) {
	var gotLanguage, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file field: %v", err)
		}
		f.Close()
		json.NewEncoder(w).Encode(map[string]string{"text": "  кухня пять метров  "})
	}))
	defer srv.Close()

	p, err := New(srv.URL, WithLanguage("ru"), WithModel("small"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := p.Transcribe(context.Background(), testWAV(t, 160, 16000), "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "кухня пять метров" {
		t.Errorf("text = %q, want trimmed transcript", text)
	}
	if gotLanguage != "ru" {
		t.Errorf("language field = %q, want ru", gotLanguage)
	}
	if gotModel != "small" {
		t.Errorf("model field = %q, want small", gotModel)
	}
}

func TestProvider_Transcribe_RejectsNonWAV(t *testing.T) {
	p, err := New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), []byte("x"), "audio/webm"); err == nil {
		t.Fatal("expected error for non-WAV mime type")
	}
}

func TestProvider_Transcribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), testWAV(t, 10, 16000), "audio/wav"); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestStripWAVHeader(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	wav := audio.EncodeWAV(pcm, 48000)

	got, rate, err := stripWAVHeader(wav)
	if err != nil {
		t.Fatalf("stripWAVHeader: %v", err)
	}
	if rate != 48000 {
		t.Errorf("rate = %d, want 48000", rate)
	}
	if len(got) != len(pcm) {
		t.Fatalf("pcm length = %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("pcm[%d] = %d, want %d", i, got[i], pcm[i])
		}
	}
}

func TestStripWAVHeader_Garbage(t *testing.T) {
	if _, _, err := stripWAVHeader([]byte("not a wav file at all, sorry")); err == nil {
		t.Fatal("expected error for non-WAV input")
	}
}
