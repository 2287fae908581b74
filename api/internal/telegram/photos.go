package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/upload"
)

// Telegram re-encodes photos as JPEG.
const photoMIME = "image/jpeg"

func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	ph := msg.Photo[len(msg.Photo)-1]
	r.accept(ctx, msg, ph.FileID, "photo.jpg", photoMIME, int64(ph.FileSize))
}

func (r *Router) acceptDocument(ctx context.Context, msg *tgbotapi.Message) {
	d := msg.Document
	r.accept(ctx, msg, d.FileID, d.FileName, d.MimeType, int64(d.FileSize))
}

func (r *Router) accept(ctx context.Context, msg *tgbotapi.Message, fileID, name, mime string, size int64) {
	cid := msg.Chat.ID
	if !strings.HasPrefix(strings.ToLower(mime), "image/") {
		r.send(cid, analysis.UserMessage(analysis.InvalidFileType(mime)))
		return
	}
	if size > r.Uploads.MaxBytes() {
		r.send(cid, fmt.Sprintf("Image is too large (limit %d MB).", r.Uploads.MaxBytes()>>20))
		return
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.send(cid, analysis.UserMessage(analysis.ReadFailure(err)))
		return
	}
	data, err := r.download(ctx, url)
	if err != nil {
		r.logger().Warn("telegram download failed", zap.Int64("chat", cid), zap.Error(err))
		r.send(cid, analysis.UserMessage(analysis.ReadFailure(err)))
		return
	}

	uf, err := r.Uploads.OnPick(ctx, []upload.File{upload.Bytes{FileName: name, MIME: mime, Data: data}})
	if err != nil {
		r.send(cid, analysis.UserMessage(err))
		return
	}
	s := r.Sessions.GetOrCreate(SessionID(cid))
	s.SelectFile(ctx, uf)
	if c := strings.TrimSpace(msg.Caption); c != "" {
		s.SetFocusArea(c)
	}

	focus := s.Snapshot().FocusArea
	text := "Screenshot received. Run /check to verify it."
	if focus != "" {
		text += "\nFocus area: " + focus
	} else {
		text += "\nOptional: /focus <area> first."
	}
	r.send(cid, text)
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	c := r.HTTP
	if c == nil {
		c = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, r.Uploads.MaxBytes()+1))
}
