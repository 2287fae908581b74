package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/render"
	"compliance-check/api/internal/util"
)

const maxAPITimeout = 10 * time.Minute

type AnalyzeRequest struct {
	ImageB64  string `json:"image_b64"` // base64 or data: URL
	MIMEType  string `json:"mime_type,omitempty"`
	FocusArea string `json:"focus_area,omitempty"`
}

type AnalyzeResponse struct {
	Text      string              `json:"text"`
	Citations []analysis.Citation `json:"citations"`
	Links     []analysis.WebRef   `json:"links"`
	Blocks    []render.Block      `json:"blocks"`
}

// Analyze runs one stateless check: POST /v1/analyze.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis is not configured")
		return
	}
	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()*2))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	img, hint, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
	if err != nil || len(img) == 0 {
		writeError(w, http.StatusBadRequest, "bad image_b64")
		return
	}
	if int64(len(img)) > h.uploads.MaxBytes() {
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
		return
	}
	mime := util.PickMIME(req.MIMEType, hint, img)
	if !util.IsImageMIME(mime) {
		err := analysis.InvalidFileType(mime)
		writeError(w, statusFor(err), err.Error())
		return
	}

	ctx := r.Context()
	if d := requestTimeout(r); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	res, err := h.analyzer.Analyze(ctx, bytes.NewReader(img), mime, req.FocusArea)
	if err != nil {
		h.log.Warn("api analyze failed", zap.String("kind", string(analysis.KindOf(err))), zap.Error(err))
		writeError(w, statusFor(err), analysis.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, NewAnalyzeResponse(res))
}

func NewAnalyzeResponse(res analysis.Result) AnalyzeResponse {
	return AnalyzeResponse{
		Text:      res.Text,
		Citations: res.Citations,
		Links:     res.Links(),
		Blocks:    render.Render(res.Text),
	}
}

// requestTimeout reads X-Request-Timeout or ?timeoutSec, in seconds.
func requestTimeout(r *http.Request) time.Duration {
	ts := r.Header.Get("X-Request-Timeout")
	if ts == "" {
		ts = r.URL.Query().Get("timeoutSec")
	}
	v, err := strconv.Atoi(ts)
	if err != nil || v <= 0 {
		return 0
	}
	if v > int(maxAPITimeout/time.Second) {
		return maxAPITimeout
	}
	return time.Duration(v) * time.Second
}
