package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/session"
	"compliance-check/api/internal/upload"
)

// BotAPI is the part of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// HealthChecker reports readiness of a dependency for /health.
type HealthChecker interface {
	Check(ctx context.Context) error
}

type Router struct {
	Bot      BotAPI
	Sessions *session.Store
	Uploads  *upload.Surface
	Health   map[string]HealthChecker
	Log      *zap.Logger
	HTTP     *http.Client

	wg sync.WaitGroup
}

func SessionID(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

func (r *Router) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}
	if len(msg.Photo) > 0 {
		r.acceptPhoto(ctx, msg)
		return
	}
	if msg.Document != nil {
		r.acceptDocument(ctx, msg)
		return
	}
	if strings.TrimSpace(msg.Text) != "" {
		r.send(cid, "Send a screenshot to check. Use /focus <area> to narrow the regulations, then /check.")
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	s := r.Sessions.GetOrCreate(SessionID(cid))
	switch msg.Command() {
	case "start", "help":
		r.send(cid, startText)
	case "health":
		r.send(cid, r.healthText(ctx))
	case "focus":
		focus := strings.TrimSpace(msg.CommandArguments())
		s.SetFocusArea(focus)
		if focus == "" {
			r.send(cid, "Focus area cleared. The model will infer the context.")
			return
		}
		r.send(cid, fmt.Sprintf("Focus area set: %s", focus))
	case "check":
		r.startCheck(cid, s)
	case "reset":
		s.Reset(ctx)
		r.send(cid, "Session cleared. Send a new screenshot.")
	default:
		r.send(cid, "Unknown command. Try /start.")
	}
}

const startText = `ComplianceGuard checks a screenshot against current laws and regulations.

1. Send a screenshot (photo or image file).
2. Optionally narrow it down: /focus Advertising Law
3. Run /check

/reset clears the session, /health shows the service status.`

const alreadyRunning = "A check is already running for this chat."

func (r *Router) healthText(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var bad []string
	for name, c := range r.Health {
		if err := c.Check(ctx); err != nil {
			bad = append(bad, name+": "+err.Error())
		}
	}
	if len(bad) == 0 {
		return "✅ OK"
	}
	return "⚠️ " + strings.Join(bad, "; ")
}

// startCheck runs the analysis off the update loop so other chats keep
// being served.
func (r *Router) startCheck(cid int64, s *session.Session) {
	if !s.CanRun() {
		if s.File() == nil {
			r.send(cid, "Send a screenshot first.")
		} else {
			r.send(cid, alreadyRunning)
		}
		return
	}
	_, _ = r.Bot.Request(tgbotapi.NewChatAction(cid, tgbotapi.ChatTyping))
	r.send(cid, "Consulting current regulations...")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		res, err := s.Run(context.Background())
		r.reply(cid, res, err)
	}()
}

// reply reports the outcome of a check. Another /check may have claimed the
// session between CanRun and Run, in which case only that one reports.
func (r *Router) reply(cid int64, res analysis.Result, err error) {
	switch {
	case err == nil:
		r.SendReport(cid, res)
	case errors.Is(err, session.ErrSuperseded):
		r.logger().Debug("check superseded", zap.Int64("chat", cid))
	case errors.Is(err, session.ErrRunDisabled):
		r.send(cid, alreadyRunning)
	default:
		r.SendError(cid, err)
	}
}

// Wait blocks until running checks have replied.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger().Warn("telegram send failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, "Analysis Failed: "+analysis.UserMessage(err))
}
