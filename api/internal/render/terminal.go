package render

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the terminal styles for a report.
type Theme struct {
	H2     lipgloss.Style
	H3     lipgloss.Style
	Strong lipgloss.Style
	Bullet lipgloss.Style
	Link   lipgloss.Style
	Muted  lipgloss.Style
}

func DefaultTheme() Theme {
	primary := lipgloss.AdaptiveColor{Light: "#3B82F6", Dark: "#60A5FA"}
	muted := lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	return Theme{
		H2:     lipgloss.NewStyle().Bold(true).Foreground(primary).Underline(true),
		H3:     lipgloss.NewStyle().Bold(true).Foreground(primary),
		Strong: lipgloss.NewStyle().Bold(true),
		Bullet: lipgloss.NewStyle().Foreground(primary),
		Link:   lipgloss.NewStyle().Foreground(primary).Underline(true),
		Muted:  lipgloss.NewStyle().Foreground(muted),
	}
}

// PlainTheme renders without colors or decorations.
func PlainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{H2: plain, H3: plain, Strong: plain, Bullet: plain, Link: plain, Muted: plain}
}

// Terminal renders blocks as styled terminal text.
func Terminal(blocks []Block, th Theme) string {
	var b strings.Builder
	n := 0
	for _, bl := range blocks {
		switch bl.Kind {
		case KindHeading:
			st := th.H2
			if bl.Level == 3 {
				st = th.H3
			}
			b.WriteString(st.Render(bl.Text))
		case KindListItem:
			if bl.Ordered {
				n++
				b.WriteString("  " + th.Bullet.Render(strconv.Itoa(n)+".") + " ")
			} else {
				b.WriteString("  " + th.Bullet.Render("•") + " ")
			}
			termSpans(&b, bl.Inline, th)
		case KindSpacer:
		default:
			termSpans(&b, bl.Inline, th)
		}
		if bl.Kind != KindListItem || !bl.Ordered {
			n = 0
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func termSpans(b *strings.Builder, spans []Span, th Theme) {
	for _, sp := range spans {
		if sp.Strong {
			b.WriteString(th.Strong.Render(sp.Text))
			continue
		}
		b.WriteString(sp.Text)
	}
}
