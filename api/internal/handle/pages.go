package handle

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/preview"
	"compliance-check/api/internal/session"
	"compliance-check/api/internal/upload"
	"compliance-check/api/internal/view"
)

const (
	sessionCookie = "cg_session"
	htmxHeader    = "HX-Request"
)

func isHTMXRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(htmxHeader), "true")
}

// session returns the caller's session, issuing a cookie for new visitors.
func (h *Handle) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return h.sessions.GetOrCreate(c.Value)
		}
	}
	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return h.sessions.GetOrCreate(id)
}

// peek returns the caller's session without creating one.
func (h *Handle) peek(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return h.sessions.Get(c.Value)
}

func (h *Handle) Index(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	templ.Handler(view.Page(view.State{Snapshot: s.Snapshot()})).ServeHTTP(w, r)
}

func (h *Handle) AppFragment(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	templ.Handler(view.App(view.State{Snapshot: s.Snapshot()})).ServeHTTP(w, r)
}

// respond renders the app fragment for htmx and the full page otherwise.
// htmx only swaps 2xx responses, so failures are reported in the notice.
func (h *Handle) respond(w http.ResponseWriter, r *http.Request, s *session.Session, notice string, code int) {
	st := view.State{Snapshot: s.Snapshot(), Notice: notice}
	if isHTMXRequest(r) {
		templ.Handler(view.App(st)).ServeHTTP(w, r)
		return
	}
	if code == http.StatusOK && notice == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	templ.Handler(view.Page(st), templ.WithStatus(code)).ServeHTTP(w, r)
}

func (h *Handle) Upload(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		h.log.Info("bad upload form", zap.Error(err))
		msg := "Could not read the upload."
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			msg = "Image is too large."
		}
		h.respond(w, r, s, msg, http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var files []upload.File
	for _, fh := range r.MultipartForm.File["file"] {
		files = append(files, upload.Multipart{FileHeader: fh})
	}
	uf, err := h.uploads.Receive(r.Context(), upload.Source(r.FormValue("source")), files)
	if err != nil {
		h.respond(w, r, s, analysis.UserMessage(err), statusFor(err))
		return
	}
	s.SelectFile(r.Context(), uf)
	h.respond(w, r, s, "", http.StatusOK)
}

func (h *Handle) Focus(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad form")
		return
	}
	s.SetFocusArea(r.PostFormValue("focus_area"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) Run(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if err := r.ParseForm(); err == nil {
		if _, ok := r.PostForm["focus_area"]; ok {
			s.SetFocusArea(r.PostFormValue("focus_area"))
		}
	}
	if err := s.RunAsync(); err != nil {
		if isHTMXRequest(r) {
			h.respond(w, r, s, "", http.StatusOK)
			return
		}
		h.respond(w, r, s, "Select an image first, or wait for the running check.", statusFor(err))
		return
	}
	h.respond(w, r, s, "", http.StatusOK)
}

func (h *Handle) Reset(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	s.Reset(r.Context())
	h.respond(w, r, s, "", http.StatusOK)
}

// Preview serves the image of the caller's own session only.
func (h *Handle) Preview(w http.ResponseWriter, r *http.Request) {
	ref := preview.Ref(chi.URLParam(r, "ref"))
	s, ok := h.peek(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f := s.File()
	if f == nil || f.Preview != ref {
		http.NotFound(w, r)
		return
	}
	rc, obj, err := h.previews.Open(r.Context(), ref)
	if err != nil {
		if !errors.Is(err, preview.ErrNotFound) {
			h.log.Warn("preview open failed", zap.Error(err))
		}
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	ct := obj.ContentType
	if ct == "" {
		ct = f.MIMEType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// image/* includes SVG, which must not run script on this origin
	w.Header().Set("Content-Security-Policy", "sandbox; default-src 'none'; style-src 'unsafe-inline'")
	_, _ = io.Copy(w, rc)
}
