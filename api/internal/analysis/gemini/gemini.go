package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/util"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini endpoint (proxies, tests).
	BaseURL    string
	HTTPClient *http.Client
}

type Engine struct {
	client *genai.Client
	Model  string
}

func New(ctx context.Context, cfg Config) (*Engine, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	cl, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Engine{client: cl, Model: model}, nil
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Analyze sends the image and prompt with Google Search grounding enabled.
// ResponseMIMEType stays unset: the search tool and JSON mode cannot be combined.
func (e *Engine) Analyze(ctx context.Context, in analysis.Request) (analysis.Result, error) {
	imgBytes, mimeFromDataURL, err := util.DecodeBase64MaybeDataURL(in.Image)
	if err != nil {
		return analysis.Result{}, analysis.ReadFailure(fmt.Errorf("gemini: bad base64: %w", err))
	}
	if len(imgBytes) == 0 {
		return analysis.Result{}, analysis.NewError(analysis.KindValidation, "image is empty")
	}
	finalMIME := util.PickMIME(in.MIMEType, mimeFromDataURL, imgBytes)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(imgBytes, finalMIME),
			genai.NewPartFromText(in.Prompt),
		}, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{}
	if in.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.SystemInstruction, genai.RoleUser)
	}
	if in.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.Model, contents, cfg)
	if err != nil {
		return analysis.Result{}, err
	}
	return decode(resp), nil
}

// decode reads the optional response fields once, so callers never re-check them.
func decode(resp *genai.GenerateContentResponse) analysis.Result {
	out := analysis.Result{Text: firstText(resp), Citations: []analysis.Citation{}}
	if out.Text == "" {
		out.Text = analysis.NoAnalysisText
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return out
	}
	for _, ch := range gm.GroundingChunks {
		if ch == nil {
			continue
		}
		c := analysis.Citation{}
		if ch.Web != nil {
			c.Web = &analysis.WebRef{URI: ch.Web.URI, Title: ch.Web.Title}
		}
		out.Citations = append(out.Citations, c)
	}
	return out
}

// firstText joins the non-thought text parts of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought || p.Text == "" {
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
