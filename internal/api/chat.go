package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/familyhub/aniversaris/internal/assistant"
	"github.com/familyhub/aniversaris/internal/pkg/httputil"
)

const maxChatBytes = 16 << 20

// Chat handles POST /api/chat
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		httputil.Error(w, http.StatusNotImplemented, "chat assistant is not configured")
		return
	}
	// Attachments arrive base64-encoded inside the JSON body, so the
	// shared 1 MB decode limit is too small here.
	var req assistant.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBytes)).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	reply, err := h.assistant.Ask(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httputil.OK(w, reply)
}

// FamilyContext handles GET /api/context. It returns the plain-text family
// summary the assistant is primed with.
func (h *Handlers) FamilyContext(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		httputil.Error(w, http.StatusNotImplemented, "chat assistant is not configured")
		return
	}
	text, err := h.assistant.Context(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"context": text})
}
