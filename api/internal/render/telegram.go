package render

import (
	"html"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxTelegramMessage stays under Telegram's 4096 character limit.
const MaxTelegramMessage = 3900

// TelegramHTML formats blocks for Telegram's HTML parse mode, which has no
// headings or lists: headings become bold lines and list items get a marker.
func TelegramHTML(blocks []Block) string {
	var b strings.Builder
	n := 0
	for i, bl := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch bl.Kind {
		case KindHeading:
			b.WriteString("<b>" + html.EscapeString(bl.Text) + "</b>")
		case KindListItem:
			if bl.Ordered {
				n++
				b.WriteString(strconv.Itoa(n) + ". ")
			} else {
				b.WriteString("• ")
			}
			tgSpans(&b, bl.Inline)
		case KindSpacer:
		default:
			tgSpans(&b, bl.Inline)
		}
		if bl.Kind != KindListItem || !bl.Ordered {
			n = 0
		}
	}
	return b.String()
}

func tgSpans(b *strings.Builder, spans []Span) {
	for _, sp := range spans {
		t := html.EscapeString(sp.Text)
		if sp.Strong {
			t = "<b>" + t + "</b>"
		}
		b.WriteString(t)
	}
}

// SplitMessage cuts Telegram HTML into chunks of at most limit runes. It
// breaks at line ends first. A longer line is cut between tags, entities and
// words, and tags open at a cut are closed and reopened in the next chunk.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxTelegramMessage
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		ll := utf8.RuneCountInString(line)
		if ll > limit {
			flush()
			out = append(out, chopLine(line, limit)...)
			continue
		}
		if curLen > 0 && curLen+1+ll > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte('\n')
			curLen++
		}
		cur.WriteString(line)
		curLen += ll
	}
	flush()
	return out
}

// maxWord bounds a text token so a run without spaces still gets cut.
const maxWord = 64

func chopLine(line string, limit int) []string {
	var (
		out  []string
		open []string // opening tags in effect, outermost first
		cur  strings.Builder
		n    int // runes in cur
		body int // runes written since the last cut
	)
	wordLimit := min(maxWord, limit)
	for i := 0; i < len(line); {
		// an opening tag travels with the text after it
		unit := nextToken(line[i:], wordLimit)
		for endsWithOpenTag(unit) && i+len(unit) < len(line) {
			unit += nextToken(line[i+len(unit):], wordLimit)
		}
		after := applyTags(open, unit)
		ul := utf8.RuneCountInString(unit)
		if body > 0 && n+ul+closersLen(after) > limit {
			cur.WriteString(closers(open))
			out = append(out, cur.String())
			cur.Reset()
			reopen := strings.Join(open, "")
			cur.WriteString(reopen)
			n = utf8.RuneCountInString(reopen)
			body = 0
		}
		cur.WriteString(unit)
		n += ul
		body += ul
		open = after
		i += len(unit)
	}
	if body > 0 {
		out = append(out, cur.String())
	}
	return out
}

func endsWithOpenTag(s string) bool {
	j := strings.LastIndexByte(s, '<')
	if j < 0 {
		return false
	}
	tag := s[j:]
	return !strings.HasPrefix(tag, "</") && strings.HasSuffix(tag, ">")
}

// applyTags returns the open tag stack after the tags in unit.
func applyTags(open []string, unit string) []string {
	out := append([]string(nil), open...)
	for rest := unit; rest != ""; {
		j := strings.IndexByte(rest, '<')
		if j < 0 {
			break
		}
		k := strings.IndexByte(rest[j:], '>')
		if k < 0 {
			break
		}
		tag := rest[j : j+k+1]
		switch {
		case strings.HasPrefix(tag, "</"):
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, tag)
		}
		rest = rest[j+k+1:]
	}
	return out
}

// nextToken returns a whole tag, a whole entity, a single space or a word of
// at most maxRunes runes.
func nextToken(s string, maxRunes int) string {
	switch s[0] {
	case '<':
		if j := strings.IndexByte(s, '>'); j >= 0 {
			return s[:j+1]
		}
	case '&':
		if j := strings.IndexByte(s, ';'); j > 0 && j <= 10 {
			return s[:j+1]
		}
	case ' ':
		return " "
	}
	end := len(s)
	if j := strings.IndexAny(s[1:], " <&"); j >= 0 {
		end = j + 1
	}
	w := s[:end]
	if utf8.RuneCountInString(w) > maxRunes {
		r := 0
		for k := range w {
			if r == maxRunes {
				return w[:k]
			}
			r++
		}
	}
	return w
}

func tagName(open string) string {
	name := strings.TrimPrefix(open, "<")
	if j := strings.IndexAny(name, " >"); j >= 0 {
		name = name[:j]
	}
	return name
}

func closers(open []string) string {
	var b strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + tagName(open[i]) + ">")
	}
	return b.String()
}

func closersLen(open []string) int {
	return utf8.RuneCountInString(closers(open))
}
