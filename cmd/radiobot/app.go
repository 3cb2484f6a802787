package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"radiobot/internal/cache"
	"radiobot/internal/config"
	"radiobot/internal/extractor"
	"radiobot/internal/governor"
	"radiobot/internal/lastfm"
	"radiobot/internal/logger"
	"radiobot/internal/media"
	"radiobot/internal/orchestrator"
	"radiobot/internal/provider"
	"radiobot/internal/provider/deezer"
	"radiobot/internal/provider/librivox"
	"radiobot/internal/provider/stream"
	"radiobot/internal/radio"
	"radiobot/internal/state"
	"radiobot/pkg/utils"
)

// app is the assembled service: every component wired and ready.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	engine  *extractor.Engine
	orch    *orchestrator.Orchestrator
	st      *state.State
	fm      *lastfm.Client
	radio   *radio.Controller
	results *cache.Cache[media.Outcome]
	refs    *cache.Cache[orchestrator.TrackRef]
}

// buildApp loads configuration and wires the full component graph.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	log := logger.New(cfg.Verbose)
	if logDir := config.GetDefaultLogPath(); os.MkdirAll(logDir, 0o755) == nil {
		logFile := filepath.Join(logDir, fmt.Sprintf("radiobot_%s.log", time.Now().Format("2006-01-02_15-04-05")))
		if err := log.SetFileLog(logFile); err == nil {
			log.Debug("Logging to file: %s", logFile)
		}
	}

	engine, err := extractor.New(extractor.Options{
		DownloadsDir: cfg.DownloadsDir,
		AudioFormat:  cfg.AudioFormat,
		CookiesText:  cfg.CookiesText,
	}, log)
	if err != nil {
		return nil, err
	}
	if err := engine.Install(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("extraction engine unavailable: %w", err)
	}

	minBytes := cfg.MinFileKB * 1024

	var clients []provider.Client
	for _, src := range []media.Source{
		media.SourceYouTube, media.SourceYTMusic, media.SourceSoundCloud, media.SourceArchive,
	} {
		c, err := stream.New(src, engine, stream.Options{
			MinFileBytes:  minBytes,
			YouTubeAPIKey: cfg.YouTubeAPIKey,
		}, log)
		if err != nil {
			engine.Close()
			return nil, err
		}
		clients = append(clients, c)
	}
	clients = append(clients,
		deezer.New(deezer.Options{DownloadsDir: cfg.DownloadsDir, MinFileBytes: minBytes}, log),
		librivox.New(librivox.Options{DownloadsDir: cfg.DownloadsDir, MinFileBytes: minBytes}, log),
	)

	resultStore, refStore, err := buildStores(cfg, log)
	if err != nil {
		engine.Close()
		return nil, err
	}

	results := cache.New[media.Outcome](cache.Policy{
		TTL:        time.Duration(cfg.Cache.ResultTTLDays) * 24 * time.Hour,
		MaxEntries: cfg.Cache.ResultMaxEntries,
	}, resultStore, log)
	refs := cache.New[orchestrator.TrackRef](cache.Policy{
		TTL:        time.Duration(cfg.Cache.MetadataTTLDays) * 24 * time.Hour,
		MaxEntries: cfg.Cache.MetadataMaxSize,
		MinScore:   cfg.Cache.MinRetryScore,
	}, refStore, log)

	gov := governor.New(governor.Options{
		MaxRetries:    cfg.Governor.MaxRetries,
		BaseDelay:     time.Duration(cfg.Governor.BaseDelaySec) * time.Second,
		Timeout:       time.Duration(cfg.Governor.TimeoutSec) * time.Second,
		MaxConcurrent: cfg.Governor.MaxConcurrent,
		RatePerMinute: cfg.Governor.RatePerMinute,
	}, log)

	orch := orchestrator.New(provider.NewRegistry(clients...), gov, results, refs,
		orchestrator.Options{
			LongFormThreshold: cfg.LongForm.ThresholdSec,
			SearchWindow:      cfg.LongForm.SearchWindow,
			Variants:          cfg.LongForm.Variants,
		}, log)

	st := state.New()
	fm := lastfm.New(cfg.LastFMKey, log)
	sched := radio.New(orch, fm, st, radio.Options{
		Genres:      cfg.Radio.Genres,
		Cooldown:    time.Duration(cfg.Radio.CooldownSec) * time.Second,
		MinDuration: cfg.Radio.MinDurationSec,
		MaxDuration: cfg.Radio.MaxDurationSec,
		HistorySize: cfg.Radio.HistorySize,
		SearchLimit: cfg.Radio.SearchLimit,
	}, log)

	return &app{
		cfg:     cfg,
		log:     log,
		engine:  engine,
		orch:    orch,
		st:      st,
		fm:      fm,
		radio:   radio.NewController(sched),
		results: results,
		refs:    refs,
	}, nil
}

func buildStores(cfg config.Config, log *logger.Logger) (cache.Store, cache.Store, error) {
	if cfg.Cache.Backend == "redis" {
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("cache backend is redis but REDIS_ADDR is not set")
		}
		return cache.NewRedisStore(cfg.RedisAddr, "results"),
			cache.NewRedisStore(cfg.RedisAddr, "metadata"), nil
	}

	if err := utils.EnsureDir(cfg.Cache.Dir); err != nil {
		return nil, nil, err
	}
	resultStore, err := cache.NewFileStore(filepath.Join(cfg.Cache.Dir, "results.json"))
	if err != nil {
		return nil, nil, err
	}
	refStore, err := cache.NewFileStore(filepath.Join(cfg.Cache.Dir, "metadata.json"))
	if err != nil {
		return nil, nil, err
	}
	return resultStore, refStore, nil
}

// close releases what the app holds. The radio loop is stopped first so no
// cycle races the engine teardown; cache writes are flushed last.
func (a *app) close() {
	a.radio.Stop()
	a.engine.Close()
	a.results.Close()
	a.refs.Close()
	a.log.Close()
}
