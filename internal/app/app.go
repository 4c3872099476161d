// Package app wires the gateway together for both entry points.
package app

import (
	"context"
	"fmt"

	"github.com/denisAlshanov/mediafetch/internal/api/handlers"
	"github.com/denisAlshanov/mediafetch/internal/api/router"
	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/services/downloader"
	"github.com/denisAlshanov/mediafetch/internal/services/extractor"
	"github.com/denisAlshanov/mediafetch/internal/services/ffmpeg"
	"github.com/denisAlshanov/mediafetch/internal/services/storage"
	"github.com/denisAlshanov/mediafetch/internal/services/youtube"
	"github.com/denisAlshanov/mediafetch/internal/services/ytdlp"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

const pageTitle = "Video Downloader"

type App struct {
	Config     *config.Config
	Router     *router.Router
	Downloader *downloader.Downloader
	Storage    *storage.Local
}

// New builds the storage, extractor backend, gateway service and routes
// described by cfg.
func New(cfg *config.Config) (*App, error) {
	logger := utils.GetLogger()

	local, err := storage.Resolve(cfg.Mode, cfg.Storage.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	objectStore, err := storage.NewObjectStore(&cfg.S3)
	if err != nil {
		return nil, err
	}
	mirror := storage.NewMirror(objectStore, cfg.S3.KeyPrefix, cfg.S3.PresignExpiry)

	transcoder := ffmpeg.NewTranscoder(cfg.Extractor.FFmpegPath)
	if !transcoder.Available() {
		if cfg.Mode == config.ModePersistent {
			logger.Warn("ffmpeg not found; merged formats and audio extraction will fail")
		} else {
			logger.Info("ffmpeg not available; only single-file formats can be downloaded")
		}
	}

	ex, locator, err := newExtractor(&cfg.Extractor, transcoder)
	if err != nil {
		return nil, err
	}

	utils.SetDefaultFields(utils.Fields{
		"mode":      cfg.Mode,
		"extractor": ex.Name(),
	})

	svc := downloader.NewDownloader(ex, local, mirror, downloader.ProfileFor(cfg.Mode), &cfg.Download)

	pageHandler := handlers.NewPageHandler(pageTitle)
	mediaHandler := handlers.NewMediaHandler(svc, local, mirror)
	healthHandler := handlers.NewHealthHandler(cfg.Mode, local, mirror, locator, transcoder)

	r := router.NewRouter(cfg, pageHandler, mediaHandler, healthHandler)

	utils.LogInfo(context.Background(), "Gateway initialized", utils.Fields{
		"storage_dir": local.Dir(),
		"s3_mirror":   mirror.Enabled(),
	})

	return &App{
		Config:     cfg,
		Router:     r,
		Downloader: svc,
		Storage:    local,
	}, nil
}

// newExtractor returns the configured backend and, when it runs an
// executable, the locator the health check uses for it.
func newExtractor(cfg *config.ExtractorConfig, transcoder *ffmpeg.Transcoder) (extractor.Extractor, handlers.BinaryLocator, error) {
	switch cfg.Backend {
	case config.BackendYtDlp:
		client := ytdlp.NewClient(ytdlp.Options{
			Binary:         cfg.YtDlpPath,
			FFmpegLocation: ffmpegLocation(transcoder),
			CookiesFile:    cfg.CookiesFile,
		})
		return client, client, nil
	case config.BackendYouTube:
		return youtube.NewClient(transcoder), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported extractor backend %q", cfg.Backend)
	}
}

// ffmpegLocation passes a resolved ffmpeg path to yt-dlp so a custom
// FFMPEG_PATH is honored. yt-dlp searches PATH itself otherwise.
func ffmpegLocation(transcoder *ffmpeg.Transcoder) string {
	path, err := transcoder.Lookup()
	if err != nil {
		return ""
	}
	return path
}
