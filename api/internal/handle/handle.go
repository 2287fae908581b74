package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/preview"
	"compliance-check/api/internal/session"
	"compliance-check/api/internal/upload"
)

type Handle struct {
	sessions *session.Store
	uploads  *upload.Surface
	previews preview.Store
	analyzer session.Analyzer
	log      *zap.Logger
	secure   bool
}

type Deps struct {
	Sessions *session.Store
	Uploads  *upload.Surface
	Previews preview.Store
	// Analyzer serves the stateless JSON API.
	Analyzer session.Analyzer
	Log      *zap.Logger
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

func New(d Deps) *Handle {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handle{
		sessions: d.Sessions,
		uploads:  d.Uploads,
		previews: d.Previews,
		analyzer: d.Analyzer,
		log:      log.Named("http"),
		secure:   d.SecureCookies,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps an error to the HTTP status a client sees.
func statusFor(err error) int {
	if errors.Is(err, session.ErrRunDisabled) {
		return http.StatusConflict
	}
	switch analysis.KindOf(err) {
	case analysis.KindInvalidFileType:
		return http.StatusUnsupportedMediaType
	case analysis.KindValidation, analysis.KindReadFailure:
		return http.StatusBadRequest
	case analysis.KindRemoteFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
