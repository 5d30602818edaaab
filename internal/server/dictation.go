package server

import (
	"io"
	"net/http"

	"github.com/velesk/smetka/internal/estimate"
	"github.com/velesk/smetka/pkg/provider/parse"
)

// dictationOutcome is the JSON shape of a parse-and-merge result.
type dictationOutcome struct {
	Transcript   string              `json:"transcript"`
	Report       estimate.MergeReport `json:"report"`
	UnknownItems []parse.UnknownItem `json:"unknown_items,omitempty"`
}

// maxAudioUpload caps a dictation audio upload at 20 MiB, comfortably above
// the two-minute capture allowance.
const maxAudioUpload = 20 << 20

// documentView is the JSON projection of the working document.
type documentView struct {
	ID         *int64              `json:"id,omitempty"`
	Editing    bool                `json:"editing"`
	LastStep   int                 `json:"last_step"`
	Client     estimate.ClientInfo `json:"client"`
	Rooms      []estimate.Room     `json:"rooms"`
	TotalArea  float64             `json:"total_area"`
	TotalSum   float64             `json:"total_sum"`
	Transcript string              `json:"transcript"`
}

// snapshotView captures the working document under the controller mutex.
func (s *Server) snapshotView() documentView {
	view := documentView{Transcript: s.cfg.Controller.Transcript()}
	s.cfg.Controller.Snapshot(func(doc *estimate.Document) {
		if id, ok := doc.ID(); ok {
			view.ID = &id
		}
		view.Editing = doc.Editing()
		view.LastStep = doc.LastStep()
		view.Client = doc.ClientInfo()
		view.Rooms = append([]estimate.Room(nil), doc.Rooms()...)
		view.TotalArea = doc.TotalArea()
		view.TotalSum = doc.TotalSum()
	})
	if view.Rooms == nil {
		view.Rooms = []estimate.Room{}
	}
	return view
}

// handleDictationState serves GET /api/dictation: the accumulated transcript
// and the current working document.
func (s *Server) handleDictationState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.snapshotView())
}

// handleDictationAudio serves POST /api/dictation/audio. The raw request
// body is one recorded utterance; its Content-Type selects the audio format.
// The recognised text is appended to the transcript and echoed back.
func (s *Server) handleDictationAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioUpload+1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(audio) == 0 {
		s.writeError(w, r, &estimate.ValidationError{Field: "audio", Reason: "request body is empty"})
		return
	}
	if len(audio) > maxAudioUpload {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "audio upload too large"})
		return
	}

	text, err := s.cfg.Controller.Transcribe(r.Context(), audio, r.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"text":       text,
		"transcript": s.cfg.Controller.Transcript(),
	})
}

// handleDictationText serves POST /api/dictation/text: appends typed or
// client-side-recognised text to the transcript.
func (s *Server) handleDictationText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.cfg.Controller.AppendTranscript(body.Text)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"transcript": s.cfg.Controller.Transcript(),
	})
}

// handleDictationClearText serves DELETE /api/dictation/text.
func (s *Server) handleDictationClearText(w http.ResponseWriter, r *http.Request) {
	s.cfg.Controller.ClearTranscript()
	w.WriteHeader(http.StatusNoContent)
}

// handleDictationParse serves POST /api/dictation/parse: runs the transcript
// through the parser and merges the proposals into the working document.
func (s *Server) handleDictationParse(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.cfg.Controller.ParseTranscript(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		*dictationOutcome
		Document documentView `json:"document"`
	}{
		dictationOutcome: &dictationOutcome{
			Transcript:   outcome.Transcript,
			Report:       outcome.Report,
			UnknownItems: outcome.UnknownItems,
		},
		Document: s.snapshotView(),
	})
}

// handleDictationAddItem serves POST /api/dictation/items: manual entry of a
// single line item. Quantity and price arrive as strings from form input.
func (s *Server) handleDictationAddItem(w http.ResponseWriter, r *http.Request) {
	var entry estimate.ItemEntry
	if err := decodeJSON(r, &entry); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.cfg.Controller.AddItem(entry); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.snapshotView())
}

// handleDictationClient serves PUT /api/dictation/client.
func (s *Server) handleDictationClient(w http.ResponseWriter, r *http.Request) {
	var info estimate.ClientInfo
	if err := decodeJSON(r, &info); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.cfg.Controller.SetClientInfo(info)
	s.writeJSON(w, http.StatusOK, s.snapshotView())
}

// handleDictationComplete serves POST /api/dictation/complete: persists the
// working document as a completed estimate. A document loaded from storage
// updates its original row; a fresh one creates a new estimate.
func (s *Server) handleDictationComplete(w http.ResponseWriter, r *http.Request) {
	stored, err := s.cfg.Controller.Complete(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stored)
}

// handleDictationDraft serves POST /api/dictation/draft: saves the working
// document as a draft. An empty document is skipped and answers 204.
func (s *Server) handleDictationDraft(w http.ResponseWriter, r *http.Request) {
	stored, err := s.cfg.Controller.SaveDraft(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if stored == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, stored)
}

// handleDictationLoad serves POST /api/dictation/load/{id}: replaces the
// working document with a stored estimate for continued editing.
func (s *Server) handleDictationLoad(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.cfg.Controller.Load(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.snapshotView())
}

// handleDictationReset serves POST /api/dictation/reset: clears the working
// document and transcript without persisting anything.
func (s *Server) handleDictationReset(w http.ResponseWriter, r *http.Request) {
	s.cfg.Controller.Reset()
	w.WriteHeader(http.StatusNoContent)
}
