package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sosibot/internal/adapters/generator"
	"sosibot/internal/adapters/handler"
	"sosibot/internal/adapters/sender"
	"sosibot/internal/adapters/transport"
	"sosibot/internal/config"
	"sosibot/internal/core/domain"
	"sosibot/internal/core/port"
	"sosibot/internal/core/service"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "sosibot",
		Short:         "Hotword triggered auto-responder for WhatsApp and Telegram chats",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				log.Error().Err(err).Msg("could not load config")
				return err
			}

			setupLogging(cfg.Log)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := run(ctx, cfg); err != nil {
				log.Error().Err(err).Msg("sosibot stopped with error")
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a toml config file (default ./config.toml if present)")

	return cmd
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("starting sosibot...")

	dispatcher := service.NewDispatcher(newPrimary(cfg),
		generator.NewOllama(cfg.Secondary.URL, cfg.Secondary.Model, cfg.Persona, cfg.Secondary.PromptFormat))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	responderCfg := service.ResponderConfig{
		Hotwords:      domain.ParseHotwords(cfg.Bot.Hotwords),
		ReplyToBot:    cfg.Bot.ReplyToBot,
		ReplyTimeout:  cfg.Bot.ReplyTimeout,
		DedupCapacity: cfg.Bot.DedupCapacity,
		DedupRetain:   cfg.Bot.DedupRetain,
		SentHistory:   cfg.Bot.SentHistory,
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics.Listen, registry)
		})
	}

	transports := 0

	if cfg.WhatsApp.Enabled {
		if err := startWhatsApp(ctx, g, cfg.WhatsApp, responderCfg, dispatcher, metrics); err != nil {
			return err
		}
		transports++
	}

	if cfg.Telegram.BotToken != "" {
		if err := startTelegram(ctx, g, cfg.Telegram, responderCfg, dispatcher, metrics); err != nil {
			return err
		}
		transports++
	}

	if transports == 0 {
		return errors.New("no transport enabled: enable whatsapp or set telegram.bot_token")
	}

	return g.Wait()
}

// newPrimary returns nil without a credential so the dispatcher goes straight to the secondary backend.
func newPrimary(cfg *config.Config) port.TextGenerator {
	if cfg.Primary.APIKey == "" {
		log.Warn().Msg("no primary api key configured, replies come from the secondary backend")
		return nil
	}

	options := generator.CompletionOptions{
		Model:        cfg.Primary.Model,
		SystemPrompt: cfg.Persona,
		Temperature:  cfg.Primary.Temperature,
		MaxTokens:    cfg.Primary.MaxTokens,
	}

	log.Info().Str("provider", cfg.Primary.Provider).Str("model", cfg.Primary.Model).Msg("primary backend configured")

	if cfg.Primary.Provider == config.ProviderOpenRouter {
		return generator.NewOpenRouter(cfg.Primary.APIKey, options)
	}

	return generator.NewOpenAI(cfg.Primary.APIKey, cfg.Primary.BaseURL, options)
}

func startWhatsApp(ctx context.Context, g *errgroup.Group, cfg config.WhatsAppConfig,
	responderCfg service.ResponderConfig, dispatcher *service.Dispatcher, metrics *service.Metrics) error {
	client, err := transport.OpenWhatsApp(ctx, cfg.StorePath)
	if err != nil {
		return err
	}

	batches := make(chan domain.Batch)
	client.AddEventHandler(handler.NewWhatsApp(ctx, batches).HandleEvent)

	responderCfg.Transport = "whatsapp"
	responder := service.NewResponder(responderCfg, dispatcher, sender.NewWhatsApp(client),
		transport.SelfID(client), metrics)

	g.Go(func() error {
		return responder.Run(ctx, batches)
	})

	g.Go(func() error {
		if err := transport.ConnectWhatsApp(ctx, client); err != nil {
			return err
		}

		<-ctx.Done()
		client.Disconnect()
		return nil
	})

	return nil
}

func startTelegram(ctx context.Context, g *errgroup.Group, cfg config.TelegramConfig,
	responderCfg service.ResponderConfig, dispatcher *service.Dispatcher, metrics *service.Metrics) error {
	batches := make(chan domain.Batch)
	h := handler.NewTelegram(batches)

	b, err := bot.New(cfg.BotToken, bot.WithDefaultHandler(h.Handle))
	if err != nil {
		return err
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return err
	}

	log.Info().Str("username", me.Username).Msg("telegram bot authorized")

	responderCfg.Transport = "telegram"
	responder := service.NewResponder(responderCfg, dispatcher, sender.NewTelegram(b),
		func() string { return me.Username }, metrics)

	g.Go(func() error {
		return responder.Run(ctx, batches)
	})

	g.Go(func() error {
		b.Start(ctx)
		return nil
	})

	return nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
