package telegram

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/render"
	"compliance-check/api/internal/util"
)

const maxTitle = 80

// FormatReport returns the HTML-mode messages for a result.
func FormatReport(res analysis.Result) []string {
	var b strings.Builder
	b.WriteString("<b>Compliance Report</b>\n\n")
	b.WriteString(render.TelegramHTML(render.Render(res.Text)))

	if links := res.Links(); len(links) > 0 {
		b.WriteString("\n\n<b>Source References</b>")
		for i, l := range links {
			b.WriteString("\n" + strconv.Itoa(i+1) + ". ")
			title := html.EscapeString(util.Truncate(l.DisplayTitle(), maxTitle))
			if !isWebURL(l.URI) {
				b.WriteString(title + " (" + html.EscapeString(l.URI) + ")")
				continue
			}
			b.WriteString(`<a href="` + html.EscapeString(l.URI) + `">` + title + "</a>")
		}
	}
	return render.SplitMessage(b.String(), render.MaxTelegramMessage)
}

// SendReport sends every part in HTML mode. A part Telegram rejects is
// resent as plain text so the rest of the report still arrives.
func (r *Router) SendReport(chatID int64, res analysis.Result) {
	for i, part := range FormatReport(res) {
		m := tgbotapi.NewMessage(chatID, part)
		m.ParseMode = tgbotapi.ModeHTML
		m.DisableWebPagePreview = true
		_, err := r.Bot.Send(m)
		if err == nil {
			continue
		}
		r.logger().Warn("telegram report part rejected, resending as text",
			zap.Int64("chat", chatID), zap.Int("part", i), zap.Error(err))
		m.Text = plainText(part)
		m.ParseMode = ""
		if _, err := r.Bot.Send(m); err != nil {
			r.logger().Warn("telegram report send failed", zap.Int64("chat", chatID), zap.Error(err))
			return
		}
	}
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// plainText drops the HTML markup of a report part.
func plainText(part string) string {
	return html.UnescapeString(tagRe.ReplaceAllString(part, ""))
}

func isWebURL(u string) bool {
	lu := strings.ToLower(u)
	return strings.HasPrefix(lu, "https://") || strings.HasPrefix(lu, "http://")
}
