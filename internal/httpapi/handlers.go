package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/vinylaudio/annotator/internal/config"
	"github.com/vinylaudio/annotator/internal/session"
	"github.com/vinylaudio/annotator/internal/snippet"
	"github.com/vinylaudio/annotator/internal/sourceaudio"
)

type audioResponse struct {
	sourceaudio.SourceAudio
	Status sourceaudio.Status `json:"status"`
}

func toAudioResponse(audio sourceaudio.SourceAudio) audioResponse {
	return audioResponse{SourceAudio: audio, Status: audio.Status()}
}

func (s *Server) handleAudios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		audios := s.session.Audios()
		ret := make([]audioResponse, 0, len(audios))
		for _, audio := range audios {
			ret = append(ret, toAudioResponse(audio))
		}
		writeJSON(w, http.StatusOK, ret)
	case http.MethodPost:
		var req session.CreateSourceAudioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		audio, err := s.session.CreateSourceAudio(r.Context(), r.Header.Get("Authorization"), req)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAudioResponse(audio))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAudioByID(w http.ResponseWriter, r *http.Request) {
	// /api/audios/{id}[/select|/url|/annotated|/speaker]
	rest := strings.TrimPrefix(r.URL.Path, "/api/audios/")
	id, action, _ := strings.Cut(rest, "/")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing audio id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		audio, ok := s.session.Audio(id)
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, toAudioResponse(audio))
	case "select":
		if !s.requireMutation(w, r) {
			return
		}
		if err := s.session.SelectAudio(id); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "url":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		audio, playableURL, ok := s.session.SelectedAudio()
		if !ok || audio.ID != id {
			writeError(w, http.StatusNotFound, "audio is not selected")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":  audio.ID,
			"url": playableURL,
		})
	case "annotated":
		if !s.requireMutation(w, r) {
			return
		}
		var req struct {
			Annotated bool `json:"annotated"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := s.session.SetAnnotated(r.Context(), id, req.Annotated); err != nil {
			writeSessionError(w, err)
			return
		}
		audio, _ := s.session.Audio(id)
		writeJSON(w, http.StatusOK, toAudioResponse(audio))
	case "speaker":
		if !s.requireMutation(w, r) {
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := s.session.SetSpeaker(r.Context(), id, req.Name); err != nil {
			writeSessionError(w, err)
			return
		}
		audio, _ := s.session.Audio(id)
		writeJSON(w, http.StatusOK, toAudioResponse(audio))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type snippetListResponse struct {
	Snippets       []snippet.Snippet `json:"snippets"`
	SelectedID     string            `json:"selectedId"`
	TotalDuration  float64           `json:"totalDuration"`
	TotalWordCount int               `json:"totalWordCount"`
}

func (s *Server) handleSnippets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snippets := s.session.SelectedSnippets()
		if snippets == nil {
			snippets = []snippet.Snippet{}
		}
		writeJSON(w, http.StatusOK, snippetListResponse{
			Snippets:       snippets,
			SelectedID:     s.session.SelectedSnippetID(),
			TotalDuration:  s.session.TotalDuration(),
			TotalWordCount: s.session.TotalWordCount(),
		})
	case http.MethodPost:
		if !s.authorize(w, r) {
			return
		}
		var req struct {
			StartTime float64 `json:"startTime"`
			EndTime   float64 `json:"endTime"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		created, ok := s.session.CreateSnippet(req.StartTime, req.EndTime)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid snippet bounds")
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSnippetByID(w http.ResponseWriter, r *http.Request) {
	// /api/snippets/{id}[/select|/resize|/split]
	rest := strings.TrimPrefix(r.URL.Path, "/api/snippets/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing snippet id")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodPut:
			if !s.authorize(w, r) {
				return
			}
			var req struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json body")
				return
			}
			if !s.session.UpdateSnippetText(id, req.Text) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			updated, _ := s.session.Snippet(id)
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if !s.authorize(w, r) {
				return
			}
			if !s.session.DeleteSnippet(id) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "select":
		if !s.requireMutation(w, r) {
			return
		}
		s.session.SelectSnippet(id)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "resize":
		if !s.requireMutation(w, r) {
			return
		}
		var req struct {
			StartTime float64 `json:"startTime"`
			EndTime   float64 `json:"endTime"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		moved, ok := s.session.ResizeSnippet(id, req.StartTime, req.EndTime)
		if !ok {
			writeError(w, http.StatusBadRequest, "resize rejected")
			return
		}
		writeJSON(w, http.StatusOK, moved)
	case "split":
		if !s.requireMutation(w, r) {
			return
		}
		parts, ok := s.session.SplitSnippet(id)
		if !ok {
			writeError(w, http.StatusBadRequest, "snippet cannot be split")
			return
		}
		writeJSON(w, http.StatusOK, parts)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type mergeRequest struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if !s.requireMutation(w, r) {
		return
	}
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	switch req.Action {
	case "start":
		if !s.session.StartMerge(req.ID) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
	case "toggle":
		if !s.session.ToggleMergeCandidate(req.ID) {
			writeError(w, http.StatusBadRequest, "selection must stay contiguous")
			return
		}
	case "confirm":
		merged, ok := s.session.ConfirmMerge()
		if !ok {
			writeError(w, http.StatusBadRequest, "merge needs at least two snippets")
			return
		}
		writeJSON(w, http.StatusOK, merged)
		return
	case "cancel":
		s.session.CancelMerge()
	default:
		writeError(w, http.StatusBadRequest, "unknown merge action")
		return
	}

	merging, ids := s.session.MergeSelection()
	writeJSON(w, http.StatusOK, map[string]any{
		"merging": merging,
		"ids":     ids,
	})
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	speakers, err := s.session.Speakers(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if speakers == nil {
		speakers = []sourceaudio.Speaker{}
	}
	writeJSON(w, http.StatusOK, speakers)
}

type stateResponse struct {
	SyncState       string `json:"syncState"`
	GuardRaised     bool   `json:"guardRaised"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	SelectedAudioID string `json:"selectedAudioId,omitempty"`
	AudioURL        string `json:"audioUrl,omitempty"`
}

func (s *Server) currentState() stateResponse {
	state := stateResponse{
		SyncState:    string(s.session.SyncState()),
		GuardRaised:  s.session.GuardRaised(),
		ErrorMessage: s.session.ErrorMessage(),
	}
	if audio, playableURL, ok := s.session.SelectedAudio(); ok {
		state.SelectedAudioID = audio.ID
		state.AudioURL = playableURL
	}
	return state
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	if !s.requireMutation(w, r) {
		return
	}
	s.session.RetrySync()
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleFiles streams bucket objects; the local bucket issues its download
// URLs under this prefix.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.bucket == nil {
		writeError(w, http.StatusNotImplemented, "bucket is not configured")
		return
	}

	refPath := strings.TrimPrefix(r.URL.Path, "/files/")
	if decoded, err := url.PathUnescape(refPath); err == nil {
		refPath = decoded
	}
	if refPath == "" {
		writeError(w, http.StatusBadRequest, "missing file path")
		return
	}

	reader, err := s.bucket.Open(r.Context(), refPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer reader.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(refPath)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	_, _ = io.Copy(w, reader)
}

// authorize resolves the acting user for a mutating request. Without a
// configured provider every caller is allowed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.auth == nil {
		return true
	}
	_, ok, err := s.auth.UserFromToken(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return false
	}
	return true
}

// requireMutation gates POST-only endpoints behind the auth provider.
func (s *Server) requireMutation(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return s.authorize(w, r)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case session.IsErrorType(err, session.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case session.IsErrorType(err, session.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case session.IsErrorType(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
