package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/denisAlshanov/mediafetch/internal/services/extractor"
)

// Options configures how the yt-dlp binary is invoked.
type Options struct {
	Binary         string // yt-dlp executable name or path
	FFmpegLocation string // passed as --ffmpeg-location when set
	CookiesFile    string // passed as --cookies when the file exists
}

// Client drives the yt-dlp command line. Every call is a separate
// process; nothing is cached between requests.
type Client struct {
	opts Options
}

func NewClient(opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	return &Client{opts: opts}
}

func (c *Client) Name() string {
	return "yt-dlp"
}

// Lookup resolves the yt-dlp executable.
func (c *Client) Lookup() (string, error) {
	if info, err := os.Stat(c.opts.Binary); err == nil && !info.IsDir() {
		return c.opts.Binary, nil
	}
	if p, err := exec.LookPath(c.opts.Binary); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find yt-dlp at %q", c.opts.Binary)
}

// infoJSON is the subset of yt-dlp's --dump-single-json output we read.
type infoJSON struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Thumbnail string       `json:"thumbnail"`
	Formats   []formatJSON `json:"formats"`
}

type formatJSON struct {
	FormatID   string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	FormatNote string `json:"format_note"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
}

func (c *Client) ExtractInfo(ctx context.Context, url string) (*extractor.Info, error) {
	stdout, err := c.run(ctx, c.infoArgs(url))
	if err != nil {
		return nil, err
	}
	return parseInfo(stdout)
}

func (c *Client) Download(ctx context.Context, url string, opts extractor.Options) (*extractor.Result, error) {
	if opts.Format == "" || opts.OutputTemplate == "" {
		return nil, errors.New("yt-dlp: format and output template are required")
	}

	stdout, err := c.run(ctx, c.downloadArgs(url, opts))
	if err != nil {
		return nil, err
	}

	filename, err := parseFilepath(stdout)
	if err != nil {
		return nil, err
	}

	return &extractor.Result{
		Filename: filename,
		Title:    strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
	}, nil
}

func (c *Client) infoArgs(url string) []string {
	args := []string{
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
	}
	args = append(args, c.commonArgs()...)
	return append(args, "--", url)
}

func (c *Client) downloadArgs(url string, opts extractor.Options) []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-f", opts.Format,
		"-o", opts.OutputTemplate,
	}

	if audio := opts.ExtractAudio; audio != nil {
		args = append(args, "-x", "--audio-format", audio.Codec)
		if audio.Quality != "" {
			args = append(args, "--audio-quality", strings.TrimSuffix(audio.Quality, "K")+"K")
		}
	}

	args = append(args, c.commonArgs()...)
	return append(args, "--", url)
}

func (c *Client) commonArgs() []string {
	var args []string
	if c.opts.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", c.opts.FFmpegLocation)
	}
	if c.opts.CookiesFile != "" {
		if _, err := os.Stat(c.opts.CookiesFile); err == nil {
			args = append(args, "--cookies", c.opts.CookiesFile)
		}
	}
	return args
}

// run executes yt-dlp and returns stdout. The error carries yt-dlp's
// stderr so the caller can log (and classify) the real cause.
func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, c.opts.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("yt-dlp error: %w", err)
		}
		return nil, fmt.Errorf("yt-dlp error: %w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

func parseInfo(data []byte) (*extractor.Info, error) {
	var raw infoJSON
	if err := json.Unmarshal(bytes.TrimSpace(data), &raw); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	info := &extractor.Info{
		ID:        raw.ID,
		Title:     raw.Title,
		Thumbnail: raw.Thumbnail,
		Formats:   make([]extractor.Format, 0, len(raw.Formats)),
	}

	for _, f := range raw.Formats {
		info.Formats = append(info.Formats, extractor.Format{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: resolutionOf(f),
			FormatNote: f.FormatNote,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
		})
	}

	return info, nil
}

func resolutionOf(f formatJSON) string {
	if f.Resolution != "" {
		return f.Resolution
	}
	if f.Width > 0 && f.Height > 0 {
		return fmt.Sprintf("%dx%d", f.Width, f.Height)
	}
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	if f.VCodec == "none" {
		return "audio only"
	}
	return ""
}

// parseFilepath returns the last non-empty line printed by
// --print after_move:filepath.
func parseFilepath(stdout []byte) (string, error) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line, nil
		}
	}
	return "", errors.New("yt-dlp reported no output file")
}
