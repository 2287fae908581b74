package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"compliance-check/api/internal/util"
)

// Client shapes requests for an Engine and normalizes what comes back.
// It is constructed once with its engine and passed to whoever needs it.
type Client struct {
	engine  Engine
	log     *zap.Logger
	timeout time.Duration
}

type ClientOption func(*Client)

// WithTimeout bounds each remote call. Zero means no bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func NewClient(engine Engine, log *zap.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{engine: engine, log: log.Named("analysis")}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze encodes the image and runs one compliance analysis.
func (c *Client) Analyze(ctx context.Context, image io.Reader, mimeType, focusArea string) (Result, error) {
	p, err := util.EncodeImage(image, mimeType)
	if err != nil {
		c.log.Warn("image encode failed", zap.Error(err))
		return Result{}, ReadFailure(err)
	}
	return c.AnalyzePayload(ctx, p, focusArea)
}

// AnalyzePayload runs an analysis for an already encoded image.
func (c *Client) AnalyzePayload(ctx context.Context, p util.Payload, focusArea string) (Result, error) {
	if c.engine == nil {
		return Result{}, RemoteFailure(errors.New("analysis engine is not configured"))
	}
	if strings.TrimSpace(p.Data) == "" {
		return Result{}, NewError(KindValidation, "image is empty")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := Request{
		Image:             p.Data,
		MIMEType:          p.MIMEType,
		Prompt:            BuildPrompt(focusArea),
		SystemInstruction: SystemInstruction,
		Search:            true,
	}

	start := time.Now()
	res, err := c.engine.Analyze(ctx, req)
	fields := []zap.Field{
		zap.String("engine", c.engine.Name()),
		zap.String("model", c.engine.GetModel()),
		zap.String("mime", p.MIMEType),
		zap.Int("bytes", p.Size),
		zap.Bool("focus", strings.TrimSpace(focusArea) != ""),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		c.log.Warn("analysis failed", append(fields, zap.Error(err))...)
		var ae *Error
		if errors.As(err, &ae) {
			return Result{}, ae
		}
		return Result{}, RemoteFailure(err)
	}

	res = normalize(res)
	c.log.Info("analysis done", append(fields, zap.Int("citations", len(res.Citations)))...)
	return res, nil
}

func normalize(r Result) Result {
	text := util.StripCodeFences(r.Text)
	if strings.TrimSpace(text) == "" {
		text = NoAnalysisText
	}
	cites := r.Citations
	if cites == nil {
		cites = []Citation{}
	}
	return Result{Text: text, Citations: cites}
}
