// Package app собирает бота из конфигурации и держит его до сигнала.
// Общая часть cmd/musicbot и cmd/companionbot.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/EgorLis/tgrelaybot/internal/bot"
	"github.com/EgorLis/tgrelaybot/internal/config"
	"github.com/EgorLis/tgrelaybot/internal/conversation"
	"github.com/EgorLis/tgrelaybot/internal/feed"
	"github.com/EgorLis/tgrelaybot/internal/gemini"
	"github.com/EgorLis/tgrelaybot/internal/logger"
	"github.com/EgorLis/tgrelaybot/internal/media"
	"github.com/EgorLis/tgrelaybot/internal/playback"
	"github.com/EgorLis/tgrelaybot/internal/telegram"
)

// Mode: какого бота собираем.
type Mode int

const (
	Music     Mode = iota // только очередь музыки и модерация
	Companion             // плюс разговор через Gemini
)

// NewCommand: корневая команда cobra для бота в режиме mode.
func NewCommand(use, short string, mode Mode) *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if err := cfg.Validate(mode == Companion); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, cfg, mode)
		},
	}
	cmd.Flags().StringVarP(&configDir, "config", "c", "", "directory with config.yaml")
	return cmd
}

// Execute запускает команду и завершает процесс с кодом 1 при ошибке.
func Execute(cmd *cobra.Command) {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// Run собирает бота и работает, пока не отменят ctx.
func Run(ctx context.Context, cfg *config.Config, mode Mode) error {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	tg, err := telegram.New(cfg.Telegram, log)
	if err != nil {
		return err
	}

	b := bot.New(tg, media.NewYTDLP(cfg.Music.YtdlpPath, log), log, playback.Config{
		MaxWait:   cfg.Playback.MaxWait,
		Unit:      cfg.Playback.Unit,
		SendAudio: cfg.Music.SendAudio,
	})
	b.SetTelegram(tg)

	if mode == Companion {
		gen, err := gemini.New(ctx, cfg.Gemini)
		if err != nil {
			return err
		}
		cc := conversation.DefaultConfig()
		if cfg.Companion.Persona != "" {
			cc.Persona = cfg.Companion.Persona
		}
		if cfg.Companion.Label != "" {
			cc.Label = cfg.Companion.Label
		}
		if cfg.Companion.Fallback != "" {
			cc.Fallback = cfg.Companion.Fallback
		}
		cc.HistorySize = cfg.Companion.HistorySize
		b.SetConversation(conversation.NewManager(gen, cc, log), cfg.Companion.Workers)
		log.Info("companion enabled", zap.String("model", gen.Model()))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Feed.Addr != "" {
		hub := feed.NewHub(log)
		b.SetFeed(hub)
		g.Go(func() error { return hub.Serve(gctx, cfg.Feed) })
	}

	if err := b.Start(); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	log.Info("running", zap.String("username", tg.Username()))

	g.Go(func() error {
		<-gctx.Done()
		b.Stop()
		return nil
	})
	err = g.Wait()
	log.Info("stopped")
	return err
}
