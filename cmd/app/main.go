package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pagecomposer/internal/config"
	logpkg "github.com/local/pagecomposer/internal/logger"
	"github.com/local/pagecomposer/internal/metrics"
	"github.com/local/pagecomposer/internal/pipeline"
	"github.com/local/pagecomposer/internal/raster"
	"github.com/local/pagecomposer/internal/server"
	"github.com/local/pagecomposer/internal/statuscheck"
	"github.com/local/pagecomposer/internal/storage"
	"github.com/local/pagecomposer/internal/store"
	web "github.com/local/pagecomposer/internal/web"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	chain, err := raster.Select()
	if err != nil {
		log.Fatal().Err(err).Msg("no raster backend available")
	}
	if chain.Degraded() {
		log.Warn().Msg("running on the fallback rasterizer; all output will be degraded")
	}

	var st store.Store
	var pinger statuscheck.RedisPinger
	if cfg.Store.RedisURL != "" {
		rs, err := store.NewRedis(cfg.Store.RedisURL, cfg.Store.TTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		st = rs
		pinger = rs
	} else {
		log.Info().Msg("no REDIS_URL set, using in-memory batch store")
		st = store.NewMemory()
	}
	defer st.Close()

	var uploader server.Uploader
	if cfg.S3.Bucket != "" {
		s3c, err := storage.New(context.Background(), cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, cfg.S3.EncryptionPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 client")
		}
		uploader = s3c
	}

	srv := server.New(cfg, st, pipeline.New(chain), uploader)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	dash := web.New()
	dash.RegisterRoutes(mux)

	mux.Handle("/metrics", metrics.Handler())

	checker := statuscheck.New(statuscheck.Options{
		Redis:    pinger,
		S3Bucket: cfg.S3.Bucket,
		Primary:  raster.NewFitz(),
		Fallback: raster.NewMutool(),
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(checker.Summary(r.Context()))
	})

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}
