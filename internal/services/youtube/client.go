package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/denisAlshanov/mediafetch/internal/services/extractor"
)

// Transcoder is the post-processing the native backend needs from ffmpeg.
type Transcoder interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
	ExtractAudio(ctx context.Context, inputPath, outputPath, codec, bitrate string) error
}

var (
	errNoFormat     = errors.New("requested format is not available")
	errNoTranscoder = errors.New("ffmpeg is required for this format but no transcoder is configured")
)

// Client is an extractor backend that talks to YouTube directly instead
// of shelling out to yt-dlp. It only understands YouTube URLs.
type Client struct {
	client     *youtube.Client
	transcoder Transcoder
}

// NewClient creates a new YouTube client
func NewClient(transcoder Transcoder) *Client {
	// No overall timeout: stream bodies can take minutes to read.
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}

	return &Client{
		client:     &youtube.Client{HTTPClient: httpClient},
		transcoder: transcoder,
	}
}

func (c *Client) Name() string {
	return "youtube"
}

// ExtractInfo retrieves video metadata
func (c *Client) ExtractInfo(ctx context.Context, url string) (*extractor.Info, error) {
	video, err := c.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}

	info := &extractor.Info{
		ID:      video.ID,
		Title:   video.Title,
		Formats: make([]extractor.Format, 0, len(video.Formats)),
	}

	widest := -1
	for i, thumb := range video.Thumbnails {
		if widest < 0 || thumb.Width > video.Thumbnails[widest].Width {
			widest = i
		}
	}
	if widest >= 0 {
		info.Thumbnail = video.Thumbnails[widest].URL
	}

	for _, f := range video.Formats {
		info.Formats = append(info.Formats, toFormat(f))
	}

	return info, nil
}

// Download resolves the selector against the video's formats, fetches
// the stream(s) and runs ffmpeg when a merge or audio conversion is
// needed.
func (c *Client) Download(ctx context.Context, url string, opts extractor.Options) (*extractor.Result, error) {
	video, err := c.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	primary, audio, err := selectFormats(video.Formats, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, opts.Format)
	}

	outputPath := extractor.ExpandTemplate(opts.OutputTemplate, sanitizeFilename(video.Title, video.ID), outputExt(primary, audio))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if audio == nil {
		if err := c.downloadStream(ctx, video, primary, outputPath); err != nil {
			return nil, err
		}
	} else if err := c.downloadMerged(ctx, video, primary, audio, outputPath); err != nil {
		return nil, err
	}

	if x := opts.ExtractAudio; x != nil {
		if c.transcoder == nil {
			os.Remove(outputPath)
			return nil, errNoTranscoder
		}
		converted := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "." + x.Codec
		if err := c.transcoder.ExtractAudio(ctx, outputPath, converted, x.Codec, x.Quality); err != nil {
			os.Remove(outputPath)
			return nil, fmt.Errorf("failed to extract audio: %w", err)
		}
		if converted != outputPath {
			os.Remove(outputPath)
		}
		outputPath = converted
	}

	return &extractor.Result{
		Filename: outputPath,
		Title:    video.Title,
	}, nil
}

// downloadMerged fetches video and audio into a scratch directory next to
// the output and muxes them with ffmpeg.
func (c *Client) downloadMerged(ctx context.Context, video *youtube.Video, videoFormat, audioFormat *youtube.Format, outputPath string) error {
	if c.transcoder == nil {
		return errNoTranscoder
	}

	tempDir, err := os.MkdirTemp(filepath.Dir(outputPath), ".merge-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	videoPath := filepath.Join(tempDir, "video."+extFromMime(videoFormat.MimeType))
	audioPath := filepath.Join(tempDir, "audio."+extFromMime(audioFormat.MimeType))

	if err := c.downloadStream(ctx, video, videoFormat, videoPath); err != nil {
		return fmt.Errorf("failed to download video stream: %w", err)
	}
	if err := c.downloadStream(ctx, video, audioFormat, audioPath); err != nil {
		return fmt.Errorf("failed to download audio stream: %w", err)
	}
	if err := c.transcoder.Merge(ctx, videoPath, audioPath, outputPath); err != nil {
		return fmt.Errorf("failed to merge video and audio: %w", err)
	}
	return nil
}

// downloadStream downloads a stream to a file
func (c *Client) downloadStream(ctx context.Context, video *youtube.Video, format *youtube.Format, outputPath string) error {
	stream, _, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, stream); err != nil {
		return fmt.Errorf("failed to write stream to file: %w", err)
	}

	return nil
}

// selectFormats walks the selector alternatives and returns the first one
// that resolves. audio is non-nil only when a separate audio stream must
// be merged in.
func selectFormats(formats youtube.FormatList, selector string) (primary, audio *youtube.Format, err error) {
	for _, alt := range extractor.ParseSelector(selector) {
		primary = resolve(formats, alt.Video)
		if primary == nil {
			continue
		}
		if alt.Audio == "" || primary.AudioChannels > 0 {
			return primary, nil, nil
		}
		if audio = resolve(formats, alt.Audio); audio != nil && audio.AudioChannels > 0 {
			return primary, audio, nil
		}
	}
	return nil, nil, errNoFormat
}

func resolve(formats youtube.FormatList, name string) *youtube.Format {
	switch name {
	case "best":
		return bestBy(formats, func(f *youtube.Format) bool {
			return isVideo(f) && f.AudioChannels > 0
		})
	case "bestaudio":
		return bestBy(formats, func(f *youtube.Format) bool {
			return !isVideo(f) && f.AudioChannels > 0
		})
	case "bestvideo":
		return bestBy(formats, isVideo)
	}

	itag, err := strconv.Atoi(name)
	if err != nil {
		return nil
	}
	for i := range formats {
		if formats[i].ItagNo == itag {
			return &formats[i]
		}
	}
	return nil
}

func bestBy(formats youtube.FormatList, keep func(*youtube.Format) bool) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !keep(f) {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func isVideo(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

func toFormat(f youtube.Format) extractor.Format {
	vcodec, acodec := codecsFromMime(f.MimeType, f.AudioChannels > 0)

	resolution := "audio only"
	if f.Width > 0 && f.Height > 0 {
		resolution = fmt.Sprintf("%dx%d", f.Width, f.Height)
	} else if isVideo(&f) {
		resolution = f.QualityLabel
	}

	note := f.QualityLabel
	if note == "" {
		note = strings.TrimPrefix(strings.ToLower(f.AudioQuality), "audio_quality_")
	}

	return extractor.Format{
		FormatID:   strconv.Itoa(f.ItagNo),
		Ext:        extFromMime(f.MimeType),
		Resolution: resolution,
		FormatNote: note,
		VCodec:     vcodec,
		ACodec:     acodec,
	}
}

// outputExt is the container of the downloaded file. A merge keeps the
// video's container only when it can also carry the audio stream as is;
// anything else goes into mkv, as yt-dlp does.
func outputExt(primary, audio *youtube.Format) string {
	video := extFromMime(primary.MimeType)
	if audio == nil {
		return video
	}

	switch a := extFromMime(audio.MimeType); {
	case video == "mp4" && a == "m4a", video == "webm" && a == "webm":
		return video
	default:
		return "mkv"
	}
}

// extFromMime maps a stream MIME type to the extension yt-dlp would use.
func extFromMime(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "bin"
	}
	kind, subtype, _ := strings.Cut(mediaType, "/")
	switch {
	case kind == "audio" && subtype == "mp4":
		return "m4a"
	case subtype == "3gpp":
		return "3gp"
	case subtype == "":
		return "bin"
	default:
		return subtype
	}
}

// codecsFromMime splits the codecs parameter into video and audio codec,
// using "none" for an absent stream.
func codecsFromMime(mimeType string, hasAudio bool) (vcodec, acodec string) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", ""
	}

	var codecs []string
	for _, c := range strings.Split(params["codecs"], ",") {
		if c = strings.TrimSpace(c); c != "" {
			codecs = append(codecs, c)
		}
	}

	if strings.HasPrefix(mediaType, "audio/") {
		if len(codecs) > 0 {
			return "none", codecs[0]
		}
		return "none", ""
	}

	vcodec, acodec = "none", "none"
	if len(codecs) > 0 {
		vcodec = codecs[0]
	}
	if len(codecs) > 1 {
		acodec = codecs[1]
	} else if hasAudio {
		acodec = ""
	}
	return vcodec, acodec
}

// sanitizeFilename makes a video title safe to use as a file name.
func sanitizeFilename(title, fallback string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(title))

	name = strings.Trim(name, ".")
	if name == "" {
		return fallback
	}
	return name
}
