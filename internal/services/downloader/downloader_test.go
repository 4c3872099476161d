package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/models"
	"github.com/denisAlshanov/mediafetch/internal/services/extractor"
	"github.com/denisAlshanov/mediafetch/internal/services/storage"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

type fakeExtractor struct {
	info     *extractor.Info
	infoErr  error
	title    string
	ext      string
	downErr  error
	calls    int
	lastOpts extractor.Options
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) ExtractInfo(ctx context.Context, url string) (*extractor.Info, error) {
	f.calls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info, nil
}

func (f *fakeExtractor) Download(ctx context.Context, url string, opts extractor.Options) (*extractor.Result, error) {
	f.calls++
	f.lastOpts = opts
	if f.downErr != nil {
		return nil, f.downErr
	}

	name := extractor.ExpandTemplate(opts.OutputTemplate, f.title, f.ext)
	if err := os.WriteFile(name, []byte("media"), 0o644); err != nil {
		return nil, err
	}
	if opts.ExtractAudio != nil {
		audio := strings.TrimSuffix(name, filepath.Ext(name)) + "." + opts.ExtractAudio.Codec
		if err := os.WriteFile(audio, []byte("audio"), 0o644); err != nil {
			return nil, err
		}
	}
	return &extractor.Result{Filename: name, Title: f.title}, nil
}

type recordingStore struct {
	keys      []string
	uploadErr error
}

func (s *recordingStore) BucketName() string { return "media" }

func (s *recordingStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *recordingStore) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func (s *recordingStore) GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", nil
}

func newTestDownloader(t *testing.T, ex extractor.Extractor, mode config.Mode, mirror *storage.Mirror) (*Downloader, *storage.Local) {
	t.Helper()
	utils.SetOutput(io.Discard)

	local, err := storage.Resolve(config.ModePersistent, t.TempDir())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	cfg := &config.DownloadConfig{AudioQuality: "192"}
	return NewDownloader(ex, local, mirror, ProfileFor(mode), cfg), local
}

var sampleInfo = &extractor.Info{
	Title:     "Clip",
	Thumbnail: "https://i.example/clip.jpg",
	Formats: []extractor.Format{
		{FormatID: "18", Ext: "mp4", Resolution: "640x360", FormatNote: "360p", VCodec: "avc1", ACodec: "mp4a"},
		{FormatID: "137", Ext: "mp4", Resolution: "1920x1080", FormatNote: "1080p", VCodec: "avc1", ACodec: "none"},
		{FormatID: "140", Ext: "m4a", Resolution: "audio only", FormatNote: "medium", VCodec: "none", ACodec: "mp4a"},
		{FormatID: "43", Ext: "webm", Resolution: "640x360", FormatNote: "360p", VCodec: "vp8", ACodec: "vorbis"},
		{FormatID: "22", Ext: "mp4", Resolution: "1280x720", FormatNote: "720p", VCodec: "avc1", ACodec: "mp4a"},
	},
}

func TestGetVideoInfo(t *testing.T) {
	testCases := []struct {
		name string
		mode config.Mode
		info *extractor.Info
		want []string
	}{
		{
			name: "persistent appends audio entry",
			mode: config.ModePersistent,
			info: sampleInfo,
			want: []string{"18", "22", "mp3"},
		},
		{
			name: "serverless never offers audio",
			mode: config.ModeServerless,
			info: sampleInfo,
			want: []string{"18", "22"},
		},
		{
			name: "no audio anywhere",
			mode: config.ModePersistent,
			info: &extractor.Info{Formats: []extractor.Format{
				{FormatID: "137", Ext: "mp4", VCodec: "avc1", ACodec: "none"},
			}},
			want: []string{},
		},
		{
			name: "missing codecs are absent",
			mode: config.ModePersistent,
			info: &extractor.Info{Formats: []extractor.Format{
				{FormatID: "1", Ext: "mp4"},
			}},
			want: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := newTestDownloader(t, &fakeExtractor{info: tc.info}, tc.mode, nil)

			resp, err := d.GetVideoInfo(context.Background(), models.VideoInfoRequest{URL: "https://v.example/1"})
			if err != nil {
				t.Fatalf("GetVideoInfo() error = %v", err)
			}
			if resp.Formats == nil {
				t.Fatal("Formats must not be nil")
			}

			got := make([]string, 0, len(resp.Formats))
			for _, f := range resp.Formats {
				got = append(got, f.FormatID)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("format ids = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGetVideoInfoDefaults(t *testing.T) {
	d, _ := newTestDownloader(t, &fakeExtractor{info: &extractor.Info{}}, config.ModePersistent, nil)

	resp, err := d.GetVideoInfo(context.Background(), models.VideoInfoRequest{URL: "https://v.example/1"})
	if err != nil {
		t.Fatalf("GetVideoInfo() error = %v", err)
	}
	if resp.Title != "No title found" {
		t.Errorf("Title = %q, want default", resp.Title)
	}
	if resp.Thumbnail != "" {
		t.Errorf("Thumbnail = %q, want empty", resp.Thumbnail)
	}
}

func TestGetVideoInfoErrors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		ex := &fakeExtractor{info: sampleInfo}
		d, _ := newTestDownloader(t, ex, config.ModePersistent, nil)

		_, err := d.GetVideoInfo(context.Background(), models.VideoInfoRequest{})
		assertAppError(t, err, 400, utils.MsgURLRequired)
		if ex.calls != 0 {
			t.Errorf("extractor called %d times, want 0", ex.calls)
		}
	})

	t.Run("extractor failure", func(t *testing.T) {
		ex := &fakeExtractor{infoErr: errors.New("ERROR: Unsupported URL")}
		d, _ := newTestDownloader(t, ex, config.ModePersistent, nil)

		_, err := d.GetVideoInfo(context.Background(), models.VideoInfoRequest{URL: "https://nope"})
		assertAppError(t, err, 500, utils.MsgLookupFailed)
	})
}

func TestDownload(t *testing.T) {
	testCases := []struct {
		name       string
		mode       config.Mode
		formatID   string
		wantFormat string
		wantAudio  bool
		wantPath   string
	}{
		{
			name:       "persistent merge",
			mode:       config.ModePersistent,
			formatID:   "22",
			wantFormat: "22+bestaudio/best",
			wantPath:   "Clip.mp4",
		},
		{
			name:       "persistent audio only",
			mode:       config.ModePersistent,
			formatID:   "mp3",
			wantFormat: "bestaudio/best",
			wantAudio:  true,
			wantPath:   "Clip.mp3",
		},
		{
			name:       "serverless treats mp3 as a format id",
			mode:       config.ModeServerless,
			formatID:   "mp3",
			wantFormat: "mp3+bestaudio/best",
			wantPath:   "Clip.mp4",
		},
		{
			name:       "serverless relative path",
			mode:       config.ModeServerless,
			formatID:   "18",
			wantFormat: "18+bestaudio/best",
			wantPath:   "Clip.mp4",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &fakeExtractor{title: "Clip", ext: "mp4"}
			d, local := newTestDownloader(t, ex, tc.mode, nil)

			resp, err := d.Download(context.Background(), models.DownloadRequest{URL: "https://v.example/1", FormatID: tc.formatID})
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}

			if resp.DownloadPath != tc.wantPath {
				t.Errorf("DownloadPath = %q, want %q", resp.DownloadPath, tc.wantPath)
			}
			if ex.lastOpts.Format != tc.wantFormat {
				t.Errorf("Format = %q, want %q", ex.lastOpts.Format, tc.wantFormat)
			}
			if (ex.lastOpts.ExtractAudio != nil) != tc.wantAudio {
				t.Errorf("ExtractAudio = %+v, want set=%v", ex.lastOpts.ExtractAudio, tc.wantAudio)
			}
			if tc.wantAudio && ex.lastOpts.ExtractAudio.Quality != "192" {
				t.Errorf("Quality = %q, want 192", ex.lastOpts.ExtractAudio.Quality)
			}
			wantTemplate := filepath.Join(local.Dir(), "%(title)s.%(ext)s")
			if ex.lastOpts.OutputTemplate != wantTemplate {
				t.Errorf("OutputTemplate = %q, want %q", ex.lastOpts.OutputTemplate, wantTemplate)
			}
			if !local.Exists(resp.DownloadPath) {
				t.Errorf("%q not found in storage", resp.DownloadPath)
			}
		})
	}
}

func TestDownloadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		mode    config.Mode
		req     models.DownloadRequest
		downErr error
		status  int
		message string
		calls   int
	}{
		{
			name:    "missing format id",
			mode:    config.ModePersistent,
			req:     models.DownloadRequest{URL: "https://v.example/1"},
			status:  400,
			message: utils.MsgURLAndFormatMissing,
		},
		{
			name:    "missing url",
			mode:    config.ModeServerless,
			req:     models.DownloadRequest{FormatID: "22"},
			status:  400,
			message: utils.MsgURLAndFormatMissing,
		},
		{
			name:    "private video",
			mode:    config.ModePersistent,
			req:     models.DownloadRequest{URL: "https://v.example/1", FormatID: "22"},
			downErr: errors.New("ERROR: Private video"),
			status:  500,
			message: utils.MsgDownloadFailed,
			calls:   1,
		},
		{
			name:    "persistent ignores ffmpeg hint",
			mode:    config.ModePersistent,
			req:     models.DownloadRequest{URL: "https://v.example/1", FormatID: "22"},
			downErr: errors.New("ERROR: ffmpeg is not installed"),
			status:  500,
			message: utils.MsgDownloadFailed,
			calls:   1,
		},
		{
			name:    "serverless explains missing ffmpeg",
			mode:    config.ModeServerless,
			req:     models.DownloadRequest{URL: "https://v.example/1", FormatID: "22"},
			downErr: errors.New("ERROR: You have requested merging but FFmpeg is not installed"),
			status:  500,
			message: utils.MsgMergeUnavailable,
			calls:   1,
		},
		{
			name:    "serverless generic failure",
			mode:    config.ModeServerless,
			req:     models.DownloadRequest{URL: "https://v.example/1", FormatID: "22"},
			downErr: errors.New("HTTP Error 403: Forbidden"),
			status:  500,
			message: utils.MsgDownloadFailed,
			calls:   1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &fakeExtractor{downErr: tc.downErr}
			d, _ := newTestDownloader(t, ex, tc.mode, nil)

			_, err := d.Download(context.Background(), tc.req)
			assertAppError(t, err, tc.status, tc.message)
			if ex.calls != tc.calls {
				t.Errorf("extractor called %d times, want %d", ex.calls, tc.calls)
			}
		})
	}
}

func TestDownloadMirror(t *testing.T) {
	t.Run("uploads under prefix", func(t *testing.T) {
		store := &recordingStore{}
		mirror := storage.NewMirror(store, "downloads/", time.Minute)
		d, _ := newTestDownloader(t, &fakeExtractor{title: "Clip", ext: "mp4"}, config.ModePersistent, mirror)

		if _, err := d.Download(context.Background(), models.DownloadRequest{URL: "u", FormatID: "22"}); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if !reflect.DeepEqual(store.keys, []string{"downloads/Clip.mp4"}) {
			t.Errorf("uploaded keys = %v", store.keys)
		}
	})

	t.Run("upload failure does not fail the download", func(t *testing.T) {
		store := &recordingStore{uploadErr: errors.New("bucket gone")}
		mirror := storage.NewMirror(store, "downloads/", time.Minute)
		d, _ := newTestDownloader(t, &fakeExtractor{title: "Clip", ext: "mp4"}, config.ModePersistent, mirror)

		resp, err := d.Download(context.Background(), models.DownloadRequest{URL: "u", FormatID: "22"})
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if resp.DownloadPath != "Clip.mp4" {
			t.Errorf("DownloadPath = %q", resp.DownloadPath)
		}
	})
}

func TestDownloadWaitsForSlot(t *testing.T) {
	utils.SetOutput(io.Discard)
	local, err := storage.Resolve(config.ModePersistent, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.DownloadConfig{MaxConcurrentDownloads: 1}
	d := NewDownloader(&fakeExtractor{title: "Clip", ext: "mp4"}, local, nil, ProfileFor(config.ModePersistent), cfg)

	d.semaphore <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Download(ctx, models.DownloadRequest{URL: "u", FormatID: "22"})
	assertAppError(t, err, 500, utils.MsgDownloadFailed)
}

type blockingExtractor struct {
	fakeExtractor
	hadDeadline bool
}

func (b *blockingExtractor) Download(ctx context.Context, url string, opts extractor.Options) (*extractor.Result, error) {
	_, b.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return nil, fmt.Errorf("yt-dlp error: %w: ERROR: interrupted at 42%%", ctx.Err())
}

func TestDownloadTimeout(t *testing.T) {
	utils.SetOutput(io.Discard)
	local, err := storage.Resolve(config.ModePersistent, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, mode := range []config.Mode{config.ModePersistent, config.ModeServerless} {
		t.Run(string(mode), func(t *testing.T) {
			ex := &blockingExtractor{}
			cfg := &config.DownloadConfig{DownloadTimeout: 20 * time.Millisecond}
			d := NewDownloader(ex, local, nil, ProfileFor(mode), cfg)

			start := time.Now()
			_, err := d.Download(context.Background(), models.DownloadRequest{URL: "u", FormatID: "22"})
			if elapsed := time.Since(start); elapsed > 5*time.Second {
				t.Fatalf("Download() took %v, timeout not applied", elapsed)
			}

			if !ex.hadDeadline {
				t.Error("extractor context carried no deadline")
			}
			assertAppError(t, err, 500, utils.MsgDownloadFailed)
			if appErr := utils.AsAppError(err); strings.Contains(appErr.Message, "interrupted") || !errors.Is(appErr, context.DeadlineExceeded) {
				t.Errorf("Message = %q, cause = %v", appErr.Message, appErr.Cause)
			}
		})
	}
}

func TestDownloadWithoutTimeoutHasNoDeadline(t *testing.T) {
	ex := &fakeExtractor{title: "Clip", ext: "mp4"}
	d, _ := newTestDownloader(t, deadlineRecorder{ex}, config.ModePersistent, nil)

	if _, err := d.Download(context.Background(), models.DownloadRequest{URL: "u", FormatID: "22"}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
}

type deadlineRecorder struct {
	*fakeExtractor
}

func (r deadlineRecorder) Download(ctx context.Context, url string, opts extractor.Options) (*extractor.Result, error) {
	if _, ok := ctx.Deadline(); ok {
		return nil, errors.New("unexpected deadline")
	}
	return r.fakeExtractor.Download(ctx, url, opts)
}

func assertAppError(t *testing.T, err error, status int, message string) {
	t.Helper()
	appErr, ok := err.(*utils.AppError)
	if !ok {
		t.Fatalf("error = %v (%T), want *utils.AppError", err, err)
	}
	if appErr.StatusCode != status {
		t.Errorf("StatusCode = %d, want %d", appErr.StatusCode, status)
	}
	if appErr.Message != message {
		t.Errorf("Message = %q, want %q", appErr.Message, message)
	}
}
