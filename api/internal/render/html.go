package render

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// HTML renders blocks as a templ component.
func HTML(blocks []Block) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return WriteHTML(w, blocks)
	})
}

// WriteHTML writes blocks as HTML. Consecutive list items of the same kind
// share one <ul>/<ol>. All text is escaped before tags are added.
func WriteHTML(w io.Writer, blocks []Block) error {
	var b strings.Builder
	openList := ""
	closeList := func() {
		if openList != "" {
			b.WriteString("</" + openList + ">\n")
			openList = ""
		}
	}
	for _, bl := range blocks {
		if bl.Kind == KindListItem {
			tag := "ul"
			if bl.Ordered {
				tag = "ol"
			}
			if tag != openList {
				closeList()
				b.WriteString(`<` + tag + ` class="report-list">` + "\n")
				openList = tag
			}
			b.WriteString("<li>")
			writeSpans(&b, bl.Inline)
			b.WriteString("</li>\n")
			continue
		}
		closeList()
		switch bl.Kind {
		case KindHeading:
			h := "h" + strconv.Itoa(bl.Level)
			b.WriteString("<" + h + ">" + templ.EscapeString(bl.Text) + "</" + h + ">\n")
		case KindSpacer:
			b.WriteString(`<div class="report-spacer"></div>` + "\n")
		default:
			b.WriteString("<p>")
			writeSpans(&b, bl.Inline)
			b.WriteString("</p>\n")
		}
	}
	closeList()
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSpans(b *strings.Builder, spans []Span) {
	for _, sp := range spans {
		text := templ.EscapeString(sp.Text)
		if sp.Strong {
			b.WriteString("<strong>" + text + "</strong>")
			continue
		}
		b.WriteString(text)
	}
}
