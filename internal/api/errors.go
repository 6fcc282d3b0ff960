package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/guard"
	"github.com/familyhub/aniversaris/internal/pkg/httputil"
	"github.com/familyhub/aniversaris/internal/service/notify"
	"github.com/familyhub/aniversaris/internal/service/settings"
)

// Error codes returned next to the message so clients can branch without
// parsing text.
const (
	codeValidation     = "VALIDATION"
	codeDuplicateExact = "DUPLICATE_EXACT"
	codeSimilarNames   = "SIMILAR_NAMES"
	codeNotFound       = "NOT_FOUND"
	codeAmbiguous      = "AMBIGUOUS"
	codeBusy           = "BUSY"
	codeDisabled       = "CHANNEL_DISABLED"
	codeUpstream       = "UPSTREAM"
)

// MaintenanceMessage is shown to users while maintenance mode is on.
const MaintenanceMessage = "En manteniment, disculpa les molèsties. En breu tornem"

type maintenanceResponse struct {
	Success     bool   `json:"success"`
	Maintenance bool   `json:"maintenance"`
	Error       string `json:"error"`
}

type duplicateDetails struct {
	Kind  domain.MatchKind `json:"kind"`
	Names []string         `json:"names"`
}

func respondMaintenance(w http.ResponseWriter) {
	httputil.JSON(w, http.StatusServiceUnavailable, maintenanceResponse{
		Maintenance: true,
		Error:       MaintenanceMessage,
	})
}

// respondError maps an error kind to its status code. Client errors carry
// their message; everything else is logged and answered generically.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var derr *domain.DuplicateError

	switch {
	case errors.As(err, &verr):
		httputil.ErrorWithCode(w, http.StatusBadRequest, codeValidation, verr.Error(), map[string]string{"field": verr.Field})
	case errors.As(err, &derr):
		if derr.Kind == domain.MatchExact {
			httputil.ErrorWithCode(w, http.StatusConflict, codeDuplicateExact,
				"Ja existeix un aniversari amb aquest nom", duplicateDetails{Kind: derr.Kind, Names: derr.Names})
			return
		}
		httputil.ErrorWithCode(w, http.StatusConflict, codeSimilarNames,
			"Hi ha aniversaris similars: "+strings.Join(derr.Names, ", "), duplicateDetails{Kind: derr.Kind, Names: derr.Names})
	case errors.Is(err, domain.ErrNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, codeNotFound, "Persona no trobada", nil)
	case errors.Is(err, domain.ErrAmbiguous):
		httputil.ErrorWithCode(w, http.StatusConflict, codeAmbiguous, err.Error(), nil)
	case errors.Is(err, domain.ErrMaintenance):
		respondMaintenance(w)
	case errors.Is(err, guard.ErrBusy):
		httputil.ErrorWithCode(w, http.StatusConflict, codeBusy, err.Error(), nil)
	case errors.Is(err, notify.ErrChannelDisabled):
		httputil.ErrorWithCode(w, http.StatusConflict, codeDisabled, err.Error(), nil)
	case errors.Is(err, settings.ErrUnknownKey):
		httputil.ErrorWithCode(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		h.respondSafeError(w, r, http.StatusGatewayTimeout, err, "Request timed out")
	case errors.Is(err, domain.ErrUpstream):
		h.respondSafeError(w, r, http.StatusBadGateway, err, "Service temporarily unavailable")
	default:
		h.respondSafeError(w, r, http.StatusInternalServerError, err, "An internal error occurred")
	}
}

// respondSafeError logs the full internal error and sends a sanitized
// JSON error to the client. Internal details never leave the server.
func (h *Handlers) respondSafeError(w http.ResponseWriter, r *http.Request, code int, internalErr error, publicMsg string) {
	if internalErr != nil {
		h.log.Error(publicMsg,
			zap.Int("status", code),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Error(internalErr),
		)
	}
	httputil.ErrorWithCode(w, code, codeUpstream, publicMsg, nil)
}
