package downloader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/models"
	"github.com/denisAlshanov/mediafetch/internal/services/extractor"
	"github.com/denisAlshanov/mediafetch/internal/services/storage"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

const defaultTitle = "No title found"

// Profile captures how the two deployment variants differ.
type Profile struct {
	// OfferAudioOnly enables the synthetic mp3 format and its download
	// branch. It needs ffmpeg, so only the persistent server has it.
	OfferAudioOnly bool

	// RelativePaths reports download_path relative to the storage
	// directory instead of as a bare file name.
	RelativePaths bool

	// ExplainMissingFFmpeg returns a dedicated message when a download
	// fails because ffmpeg is not installed.
	ExplainMissingFFmpeg bool
}

func ProfileFor(mode config.Mode) Profile {
	if mode == config.ModeServerless {
		return Profile{
			RelativePaths:        true,
			ExplainMissingFFmpeg: true,
		}
	}
	return Profile{OfferAudioOnly: true}
}

type Downloader struct {
	extractor extractor.Extractor
	storage   *storage.Local
	mirror    *storage.Mirror
	profile   Profile
	config    *config.DownloadConfig
	semaphore chan struct{}
}

func NewDownloader(ex extractor.Extractor, local *storage.Local, mirror *storage.Mirror, profile Profile, cfg *config.DownloadConfig) *Downloader {
	d := &Downloader{
		extractor: ex,
		storage:   local,
		mirror:    mirror,
		profile:   profile,
		config:    cfg,
	}
	if cfg.MaxConcurrentDownloads > 0 {
		d.semaphore = make(chan struct{}, cfg.MaxConcurrentDownloads)
	}
	return d
}

func (d *Downloader) Profile() Profile {
	return d.profile
}

// GetVideoInfo lists the formats of url that can be offered for download:
// mp4 files carrying both video and audio, plus the synthetic audio-only
// entry when this deployment can produce it.
func (d *Downloader) GetVideoInfo(ctx context.Context, req models.VideoInfoRequest) (*models.VideoInfoResponse, error) {
	if req.URL == "" {
		return nil, utils.NewInvalidRequestError(utils.MsgURLRequired)
	}

	utils.LogInfo(ctx, "Fetching video info", utils.Fields{
		"url":       req.URL,
		"extractor": d.extractor.Name(),
	})

	info, err := d.extractor.ExtractInfo(ctx, req.URL)
	if err != nil {
		utils.LogError(ctx, "Error fetching video info", err, utils.Fields{"url": req.URL})
		return nil, utils.NewLookupError(err)
	}

	response := &models.VideoInfoResponse{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Formats:   filterFormats(info.Formats),
	}
	if response.Title == "" {
		response.Title = defaultTitle
	}

	if d.profile.OfferAudioOnly && anyAudio(info.Formats) {
		response.Formats = append(response.Formats, models.AudioOnlyFormat())
	}

	return response, nil
}

// Download fetches the requested format into the storage directory and
// reports where it landed. Two requests resolving to the same title
// write the same file; the last one to finish wins.
func (d *Downloader) Download(ctx context.Context, req models.DownloadRequest) (*models.DownloadResponse, error) {
	if req.URL == "" || req.FormatID == "" {
		return nil, utils.NewInvalidRequestError(utils.MsgURLAndFormatMissing)
	}

	utils.LogInfo(ctx, "Download request", utils.Fields{
		"url":       req.URL,
		"format_id": req.FormatID,
		"extractor": d.extractor.Name(),
	})

	release, err := d.acquire(ctx)
	if err != nil {
		utils.LogError(ctx, "Download cancelled while waiting for a slot", err)
		return nil, utils.NewDownloadError(err)
	}
	defer release()

	if d.config.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.DownloadTimeout)
		defer cancel()
	}

	audioOnly := d.profile.OfferAudioOnly && req.FormatID == models.AudioOnlyFormatID
	result, err := d.extractor.Download(ctx, req.URL, d.options(req.FormatID, audioOnly))
	if err != nil {
		utils.LogError(ctx, "Download failed", err, utils.Fields{
			"url":       req.URL,
			"format_id": req.FormatID,
		})
		if d.profile.ExplainMissingFFmpeg && strings.Contains(strings.ToLower(err.Error()), "ffmpeg") {
			return nil, utils.NewMergeUnavailableError(err)
		}
		return nil, utils.NewDownloadError(err)
	}

	filename := result.Filename
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(d.storage.Dir(), filename)
	}
	if audioOnly {
		filename = replaceExt(filename, models.AudioOnlyFormatID)
	}

	downloadPath, err := d.downloadPath(filename)
	if err != nil {
		utils.LogError(ctx, "Downloaded file is outside the storage directory", err)
		return nil, utils.NewDownloadError(err)
	}

	utils.LogInfo(ctx, "File downloaded", utils.Fields{
		"file":          filename,
		"download_path": downloadPath,
	})

	if d.mirror.Enabled() {
		if err := d.mirror.Upload(ctx, downloadPath, filename); err != nil {
			utils.LogError(ctx, "Failed to mirror download", err, utils.Fields{"download_path": downloadPath})
		}
	}

	return &models.DownloadResponse{DownloadPath: downloadPath}, nil
}

func (d *Downloader) options(formatID string, audioOnly bool) extractor.Options {
	opts := extractor.Options{
		OutputTemplate: filepath.Join(d.storage.Dir(), extractor.OutputTemplate),
	}

	if audioOnly {
		opts.Format = extractor.AudioSelector()
		opts.ExtractAudio = &extractor.AudioExtraction{
			Codec:   models.AudioOnlyFormatID,
			Quality: d.config.AudioQuality,
		}
		return opts
	}

	opts.Format = extractor.MergeSelector(formatID)
	return opts
}

func (d *Downloader) downloadPath(filename string) (string, error) {
	if d.profile.RelativePaths {
		return d.storage.Rel(filename)
	}
	return filepath.Base(filename), nil
}

func (d *Downloader) acquire(ctx context.Context) (func(), error) {
	if d.semaphore == nil {
		return func() {}, nil
	}
	select {
	case d.semaphore <- struct{}{}:
		return func() { <-d.semaphore }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func filterFormats(formats []extractor.Format) []models.FormatDescriptor {
	result := make([]models.FormatDescriptor, 0, len(formats))
	for _, f := range formats {
		if f.Ext != "mp4" || !f.HasVideo() || !f.HasAudio() {
			continue
		}
		result = append(result, models.FormatDescriptor{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: f.Resolution,
			FormatNote: f.FormatNote,
		})
	}
	return result
}

func anyAudio(formats []extractor.Format) bool {
	for _, f := range formats {
		if f.HasAudio() {
			return true
		}
	}
	return false
}

func replaceExt(filename, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + "." + ext
}
