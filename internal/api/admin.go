package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/familyhub/aniversaris/internal/pkg/httputil"
)

type settingsResponse struct {
	Maintenance bool              `json:"maintenance"`
	Settings    map[string]string `json:"settings"`
}

// GetSettings handles GET /admin/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeSettings(w, r)
}

// UpdateSettings handles PUT /admin/settings. The body maps setting keys
// to booleans or strings, e.g. {"maintenance": true, "sms_enabled": "false"}.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if !httputil.Decode(w, r, &in) {
		return
	}

	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := h.settings.Set(r.Context(), k, fmt.Sprint(in[k])); err != nil {
			h.respondError(w, r, fmt.Errorf("%s: %w", k, err))
			return
		}
	}
	h.writeSettings(w, r)
}

func (h *Handlers) writeSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.settings.All(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, settingsResponse{
		Maintenance: h.settings.Maintenance(r.Context()),
		Settings:    all,
	})
}
