package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/m3rciful/sealbid/core/bootstrap"
	"github.com/m3rciful/sealbid/core/cmd"
	coreconfig "github.com/m3rciful/sealbid/core/config"
	"github.com/m3rciful/sealbid/core/logger"
	"github.com/m3rciful/sealbid/internal/bot"
	"github.com/m3rciful/sealbid/internal/ledger"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		Bootstrap:         bootstrapApp,
	})
	if err != nil && !errors.Is(err, cmd.ErrInvalidConfig) {
		log.Printf("sealbid: %v", err)
	}
	os.Exit(cmd.ExitCode(err))
}

func bootstrapApp(ctx context.Context, cfg *coreconfig.Config) (cmd.TelegramApp, func(), error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:        cfg,
		Migrations:    ledger.Migrations,
		MigrationsDir: ledger.MigrationsDir,
	})
	if err != nil {
		return nil, nil, err
	}

	store, err := ledger.Open(cfg.Ledger, res.DB)
	if err != nil {
		closeDB(res)
		return nil, nil, fmt.Errorf("ledger: %w", err)
	}

	app, err := bot.New(ctx, cfg, store)
	if err != nil {
		_ = store.Close()
		closeDB(res)
		return nil, nil, err
	}

	cleanup := func() {
		app.Close()
		if err := store.Close(); err != nil {
			logger.Ledger.Error("close failed",
				slog.String("event", "ledger.close"),
				slog.String("err", err.Error()),
			)
		}
		closeDB(res)
	}
	return app, cleanup, nil
}

func closeDB(res *bootstrap.Result) {
	if res != nil && res.DB != nil {
		_ = res.DB.Close()
	}
}
