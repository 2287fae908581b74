// Package view holds the HTML components of the web surface.
package view

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/render"
	"compliance-check/api/internal/session"
)

// Button labels and headings shown to the user.
const (
	AppName        = "ComplianceGuard"
	RunLabel       = "Run Compliance Check"
	RunningLabel   = "Analyzing Regulations..."
	ReadyTitle     = "Ready to Analyze"
	FailedTitle    = "Analysis Failed"
	PendingText    = "Consulting current regulations..."
	ReportTitle    = "Compliance Report"
	SourcesTitle   = "Source References"
	ChangeImage    = "Change Image"
	focusHint      = "Gemini will search specifically for recent amendments regarding your focus area. If left blank, it will infer the context."
	readyHint      = `Upload a screenshot and click "Run Compliance Check" to verify content against the latest web-sourced regulations.`
	htmxScriptPath = "https://unpkg.com/htmx.org@2.0.4"
)

// State is what the components render: a session snapshot plus a one-off
// notice such as a rejected upload.
type State struct {
	session.Snapshot
	Notice string
}

// markup is literal HTML. Only constants convert to it implicitly, so
// runtime strings have to go through text or a component.
type markup string

type builder struct {
	strings.Builder
	ctx context.Context
	err error
}

func (b *builder) raw(s markup)  { b.WriteString(string(s)) }
func (b *builder) text(s string) { b.WriteString(templ.EscapeString(s)) }

// render writes a nested component in place.
func (b *builder) render(c templ.Component) {
	if b.err == nil {
		b.err = c.Render(b.ctx, &b.Builder)
	}
}

func component(fn func(b *builder) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := builder{ctx: ctx}
		if err := fn(&b); err != nil {
			return err
		}
		if b.err != nil {
			return b.err
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Page is the full document.
func Page(st State) templ.Component {
	return component(func(b *builder) error {
		b.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.raw(`<title>`)
		b.text(AppName)
		b.raw(`</title><script src="` + htmxScriptPath + `"></script>`)
		b.raw(`<style>` + css + `</style></head><body>`)
		writeApp(b, st)
		b.raw(`</body></html>`)
		return nil
	})
}

// App is the swappable fragment returned to htmx requests.
func App(st State) templ.Component {
	return component(func(b *builder) error {
		writeApp(b, st)
		return nil
	})
}

func writeApp(b *builder, st State) {
	b.raw(`<div id="app" class="layout"`)
	if st.Status == session.StatusAnalyzing {
		b.raw(` hx-get="/app" hx-trigger="every 1s" hx-swap="outerHTML"`)
	}
	b.raw(`>`)
	writeSidebar(b, st)
	writeMain(b, st)
	b.raw(`</div>`)
}

func writeSidebar(b *builder, st State) {
	b.raw(`<aside class="sidebar"><header><div class="logo">C</div><h1>`)
	b.text(AppName)
	b.raw(`</h1><p class="tagline">AI-Powered Regulatory Check</p></header>`)

	b.raw(`<section class="step"><h2>1. Input Source</h2>`)
	if st.Notice != "" {
		b.raw(`<p class="notice" role="alert">`)
		b.text(st.Notice)
		b.raw(`</p>`)
	}
	if st.File == nil {
		writeDropZone(b)
	} else {
		b.raw(`<div class="preview"><img src="/preview/`)
		b.text(st.File.Preview)
		b.raw(`" alt="Preview"><form class="overlay" method="post" action="/reset" hx-post="/reset" hx-target="#app" hx-swap="outerHTML">`)
		b.raw(`<button type="submit">`)
		b.text(ChangeImage)
		b.raw(`</button></form></div>`)
	}
	b.raw(`</section>`)

	if st.File == nil {
		b.raw(`<section class="step disabled">`)
	} else {
		b.raw(`<section class="step">`)
	}
	b.raw(`<h2>2. Compliance Context</h2>`)
	b.raw(`<label for="focus_area">Specific Regulation Focus (Optional)</label>`)
	b.raw(`<input id="focus_area" type="text" name="focus_area" placeholder="e.g. Advertising Law, Traffic Safety..." value="`)
	b.text(st.FocusArea)
	b.raw(`" hx-post="/focus" hx-trigger="keyup changed delay:300ms" hx-swap="none"`)
	if st.File == nil {
		b.raw(` disabled`)
	}
	b.raw(`><p class="hint">`)
	b.text(focusHint)
	b.raw(`</p></section>`)

	b.raw(`<footer><form method="post" action="/run" hx-post="/run" hx-target="#app" hx-swap="outerHTML" hx-include="#focus_area">`)
	b.raw(`<button class="primary" type="submit"`)
	if !st.CanRun {
		b.raw(` disabled`)
	}
	b.raw(`>`)
	if st.Status == session.StatusAnalyzing {
		b.raw(`<span class="spinner"></span>`)
		b.text(RunningLabel)
	} else {
		b.text(RunLabel)
	}
	b.raw(`</button></form></footer></aside>`)
}

func writeDropZone(b *builder) {
	b.raw(`<form class="dropzone" method="post" action="/upload" enctype="multipart/form-data"`)
	b.raw(` hx-post="/upload" hx-encoding="multipart/form-data" hx-target="#app" hx-swap="outerHTML" hx-trigger="change">`)
	b.raw(`<input type="hidden" name="source" value="pick">`)
	b.raw(`<input type="file" name="file" accept="image/*" onchange="this.form.elements.source.value='pick'">`)
	b.raw(`<h3>Upload Screenshot</h3><p>Drag &amp; drop or click to select</p><p class="small">Supports PNG, JPG, WEBP</p>`)
	b.raw(`<noscript><button type="submit">Upload</button></noscript></form>`)
	b.raw(`<script>` + dropScript + `</script>`)
}

func writeMain(b *builder, st State) {
	b.raw(`<main>`)
	switch st.Status {
	case session.StatusError:
		b.raw(`<div class="failed"><h3>`)
		b.text(FailedTitle)
		b.raw(`</h3><p>`)
		msg := st.Error
		if msg == "" {
			msg = analysis.UnexpectedErrorText
		}
		b.text(msg)
		b.raw(`</p></div>`)
	case session.StatusAnalyzing:
		b.raw(`<div class="pending"><div class="bar"></div><div class="bar short"></div><div class="bar"></div><p>`)
		b.text(PendingText)
		b.raw(`</p></div>`)
	case session.StatusCompleted:
		if st.Result != nil {
			writeReport(b, *st.Result)
			break
		}
		fallthrough
	default:
		b.raw(`<div class="ready"><h3>`)
		b.text(ReadyTitle)
		b.raw(`</h3><p>`)
		b.text(readyHint)
		b.raw(`</p></div>`)
	}
	b.raw(`</main>`)
}

// Report renders a finished analysis with its sources.
func Report(res analysis.Result) templ.Component {
	return component(func(b *builder) error {
		writeReport(b, res)
		return nil
	})
}

func writeReport(b *builder, res analysis.Result) {
	b.raw(`<article class="report"><header><h2>`)
	b.text(ReportTitle)
	b.raw(`</h2><span class="badge">AI Generated</span></header><div class="prose">`)
	b.render(render.HTML(render.Render(res.Text)))
	b.raw(`</div>`)

	links := res.Links()
	if len(links) > 0 {
		b.raw(`<section class="sources"><h4>`)
		b.text(SourcesTitle)
		b.raw(`</h4>`)
		for _, l := range links {
			b.raw(`<a href="`)
			b.text(string(templ.URL(l.URI)))
			b.raw(`" target="_blank" rel="noopener noreferrer"><span class="title">`)
			b.text(l.DisplayTitle())
			b.raw(`</span><span class="uri">`)
			b.text(l.URI)
			b.raw(`</span></a>`)
		}
		b.raw(`</section>`)
	}
	b.raw(`</article>`)
}
