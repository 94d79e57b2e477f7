package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/config"
	"github.com/robalobadob/wavelength/internal/gifs"
	"github.com/robalobadob/wavelength/internal/httpserver"
	"github.com/robalobadob/wavelength/internal/live"
	"github.com/robalobadob/wavelength/internal/scales"
	"github.com/robalobadob/wavelength/internal/service"
	"github.com/robalobadob/wavelength/internal/store"
	"github.com/robalobadob/wavelength/internal/upload"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("read .env")
	}
	cfg := config.Load()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.RedisURL, cfg.SQLitePath, cfg.StoreOptions())
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open game store")
	}
	defer st.Close()

	if sw, ok := st.(store.Sweeper); ok {
		stopSweep, err := store.StartSweeper(sw, cfg.SweepInterval())
		if err != nil {
			log.Fatal().Err(err).Msg("start expiry sweeper")
		}
		defer func() { _ = stopSweep() }()
	}

	if err := scales.Init(cfg.ScalesFile); err != nil {
		log.Fatal().Err(err).Str("file", cfg.ScalesFile).Msg("failed to load scale deck")
	}
	deck, _ := scales.Default()

	var uploader upload.Uploader
	if cfg.UploadsEnabled() {
		s3up, err := upload.NewS3(ctx, cfg.S3())
		if err != nil {
			log.Fatal().Err(err).Msg("configure image uploads")
		}
		uploader = s3up
	} else {
		log.Warn().Msg("S3 not configured, image uploads disabled")
	}

	origin := cfg.ClientOrigin
	hub := live.NewHub(func(o string) bool { return o == origin })
	svc := service.New(st, cfg.GameCodeLength, cfg.GameCodeAttempts, service.WithPublisher(hub))

	srv := httpserver.New(httpserver.Deps{
		Service:      svc,
		Store:        st,
		Hub:          hub,
		Uploads:      upload.NewService(uploader, cfg.UploadMaxBytes),
		Gifs:         gifs.NewClient(cfg.GiphyAPIKey, ""),
		Scales:       deck,
		Admin:        httpserver.AdminConfig{KeyHash: cfg.AdminKeyHash, JWTSecret: cfg.AdminJWTSecret},
		ClientOrigin: origin,
	})

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("starting wavelength server")
		errc <- srv.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
