package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"compliance-check/api/internal/config"
	"compliance-check/api/internal/handle"
	"compliance-check/api/internal/httpserver"
	"compliance-check/api/internal/preview"
	"compliance-check/api/internal/session"
	"compliance-check/api/internal/telegram"
	"compliance-check/api/internal/upload"
)

func newServeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web app, the JSON API and the Telegram bot",
		Long: `Serve the drag-and-drop web app and POST /v1/analyze on PORT.

When TELEGRAM_BOT_TOKEN is set the bot runs too: in webhook mode if
TELEGRAM_WEBHOOK_URL is set, otherwise by long polling.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.serve(ctx)
		},
	}
}

func (o *options) serve(ctx context.Context) error {
	cfg, log, err := o.load(false)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := o.client(ctx, cfg, log)
	if err != nil {
		return err
	}
	previews, err := preview.New(ctx, previewConfig(cfg))
	if err != nil {
		return fmt.Errorf("preview store: %w", err)
	}
	uploads := upload.NewSurface(previews, cfg.MaxUploadBytes, log)
	sessions := session.NewStore(client, cfg.SessionTTL, log)

	routes := handle.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.APIRateLimit,
		RateBurst:      cfg.APIRateBurst,
		TrustProxy:     cfg.TrustProxy,
		Health:         map[string]handle.HealthChecker{"preview": previews},
		Webhooks:       map[string]http.Handler{},
	}

	g, gctx := errgroup.WithContext(ctx)

	var bot *telegram.Router
	if token := strings.TrimSpace(cfg.TelegramBotToken); token != "" {
		api, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot = &telegram.Router{
			Bot:      api,
			Sessions: sessions,
			Uploads:  uploads,
			Health:   map[string]telegram.HealthChecker{"preview": previews},
			Log:      log.Named("telegram"),
			HTTP:     &http.Client{Timeout: 60 * time.Second},
		}
		handleUpdate := func(u tgbotapi.Update) { bot.HandleUpdate(gctx, u) }

		if hook := strings.TrimSpace(cfg.TelegramWebhookURL); hook != "" {
			public, err := telegram.SetWebhook(api, token, hook)
			if err != nil {
				return fmt.Errorf("telegram set webhook: %w", err)
			}
			routes.Webhooks[telegram.WebhookPath(token)] = telegram.WebhookHandler(api, handleUpdate, log)
			log.Info("telegram webhook mode", zap.String("url", public))
		} else {
			if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
				log.Warn("telegram delete webhook failed", zap.Error(err))
			}
			log.Info("telegram polling mode")
			g.Go(func() error {
				telegram.RunPolling(gctx, api, handleUpdate, log.Named("telegram"))
				return nil
			})
		}
	}

	h := handle.New(handle.Deps{
		Sessions: sessions,
		Uploads:  uploads,
		Previews: previews,
		Analyzer: client,
		Log:      log,
	})
	g.Go(func() error {
		return httpserver.Run(gctx, cfg.Addr(), h.Routes(routes), log)
	})
	g.Go(func() error {
		sessions.Janitor(gctx)
		return nil
	})

	err = g.Wait()
	sessions.Close(context.WithoutCancel(ctx))
	if bot != nil {
		bot.Wait()
	}
	log.Info("stopped")
	return err
}

func previewConfig(cfg *config.Config) preview.Config {
	return preview.Config{
		Backend:   cfg.Preview.Backend,
		Endpoint:  cfg.Preview.Endpoint,
		Region:    cfg.Preview.Region,
		Bucket:    cfg.Preview.Bucket,
		AccessKey: cfg.Preview.AccessKey,
		SecretKey: cfg.Preview.SecretKey,
		UseSSL:    cfg.Preview.UseSSL,
	}
}
