// Package render turns the model's markdown-ish answer into display blocks.
//
// Only a small line-oriented subset is understood: "## " and "### " headings,
// "* "/"- " and "1. " list items, blank lines and **strong** spans. Everything
// else is a paragraph. Block text is plain data; output adapters escape it.
package render

import (
	"regexp"
	"strings"
)

type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindListItem
	KindSpacer
)

func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindListItem:
		return "list_item"
	case KindSpacer:
		return "spacer"
	default:
		return "paragraph"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Span is a run of inline text, optionally emphasized.
type Span struct {
	Text   string `json:"text"`
	Strong bool   `json:"strong,omitempty"`
}

// Block is one rendered line. Level and Text are set for headings,
// Ordered and Inline for list items, Inline for paragraphs.
type Block struct {
	Kind    Kind   `json:"kind"`
	Level   int    `json:"level,omitempty"`
	Text    string `json:"text,omitempty"`
	Ordered bool   `json:"ordered,omitempty"`
	Inline  []Span `json:"inline,omitempty"`
}

var (
	orderedRe = regexp.MustCompile(`^\d+\.\s`)
	strongRe  = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

// Render maps text to exactly one block per line.
func Render(text string) []Block {
	lines := strings.Split(text, "\n")
	out := make([]Block, 0, len(lines))
	for _, line := range lines {
		out = append(out, renderLine(strings.TrimSuffix(line, "\r")))
	}
	return out
}

func renderLine(line string) Block {
	switch {
	case strings.HasPrefix(line, "## "):
		return Block{Kind: KindHeading, Level: 2, Text: strings.TrimPrefix(line, "## ")}
	case strings.HasPrefix(line, "### "):
		return Block{Kind: KindHeading, Level: 3, Text: strings.TrimPrefix(line, "### ")}
	}

	t := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(t, "* "), strings.HasPrefix(t, "- "):
		return Block{Kind: KindListItem, Inline: Inline(t[2:])}
	case orderedRe.MatchString(t):
		loc := orderedRe.FindStringIndex(t)
		return Block{Kind: KindListItem, Ordered: true, Inline: Inline(t[loc[1]:])}
	case t == "":
		return Block{Kind: KindSpacer}
	}
	return Block{Kind: KindParagraph, Inline: Inline(line)}
}

// Inline splits s into spans at **strong** pairs. A pair with nothing
// inside yields no span. Unpaired asterisks stay literal.
func Inline(s string) []Span {
	matches := strongRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		if s == "" {
			return nil
		}
		return []Span{{Text: s}}
	}
	var out []Span
	last := 0
	for _, m := range matches {
		if m[0] > last {
			out = append(out, Span{Text: s[last:m[0]]})
		}
		if inner := s[m[2]:m[3]]; inner != "" {
			out = append(out, Span{Text: inner, Strong: true})
		}
		last = m[1]
	}
	if last < len(s) {
		out = append(out, Span{Text: s[last:]})
	}
	return out
}

// PlainText drops emphasis markers.
func PlainText(spans []Span) string {
	var b strings.Builder
	for _, sp := range spans {
		b.WriteString(sp.Text)
	}
	return b.String()
}
