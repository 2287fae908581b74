package analysis

// NoAnalysisText is returned as the report body when the model answers with no text.
const NoAnalysisText = "No analysis generated."

// Request is what an Engine receives: one encoded image plus the instructions.
type Request struct {
	Image             string // base64 or data: URL
	MIMEType          string
	Prompt            string
	SystemInstruction string
	// Search enables the remote web-search grounding tool. It excludes
	// schema-constrained output on the service, so engines never request JSON.
	Search bool
}

// Result is one finished analysis. It is replaced wholesale by the next run.
type Result struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Citation is a grounding entry as returned by the model. Web may be nil;
// such entries are kept here and skipped when rendering.
type Citation struct {
	Web *WebRef `json:"web,omitempty"`
}

type WebRef struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Link returns the usable web reference of a citation, if any.
func (c Citation) Link() (WebRef, bool) {
	if c.Web == nil || c.Web.URI == "" {
		return WebRef{}, false
	}
	return *c.Web, true
}

// Links returns the citations that can be shown as links, in order.
func (r Result) Links() []WebRef {
	out := make([]WebRef, 0, len(r.Citations))
	for _, c := range r.Citations {
		if l, ok := c.Link(); ok {
			out = append(out, l)
		}
	}
	return out
}

// DisplayTitle falls back to a generic label for untitled sources.
func (w WebRef) DisplayTitle() string {
	if w.Title == "" {
		return "Reference Source"
	}
	return w.Title
}
