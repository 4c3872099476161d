package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNotFound is returned when the ffmpeg binary cannot be resolved. Its
// text mentions ffmpeg so callers that classify errors by message see it.
var ErrNotFound = errors.New("ffmpeg not found in PATH")

// Transcoder runs the ffmpeg binary for the two post-processing steps the
// gateway needs: merging separate video/audio streams and converting to
// an audio-only container.
type Transcoder struct {
	binary string
}

func NewTranscoder(binary string) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Transcoder{binary: binary}
}

// Lookup resolves the configured binary to an executable path.
func (t *Transcoder) Lookup() (string, error) {
	if info, err := os.Stat(t.binary); err == nil && !info.IsDir() {
		return t.binary, nil
	}
	if p, err := exec.LookPath(t.binary); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%w (looked for %q)", ErrNotFound, t.binary)
}

// Available reports whether ffmpeg can be executed on this host.
func (t *Transcoder) Available() bool {
	_, err := t.Lookup()
	return err == nil
}

// Merge muxes a video-only and an audio-only file into outputPath
// without re-encoding.
func (t *Transcoder) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return t.run(ctx, mergeArgs(videoPath, audioPath, outputPath))
}

// ExtractAudio converts inputPath to an audio-only file at the given
// bitrate in kbps.
func (t *Transcoder) ExtractAudio(ctx context.Context, inputPath, outputPath, codec, bitrate string) error {
	return t.run(ctx, extractAudioArgs(inputPath, outputPath, codec, bitrate))
}

func (t *Transcoder) run(ctx context.Context, args []string) error {
	path, err := t.Lookup()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func mergeArgs(videoPath, audioPath, outputPath string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
		outputPath,
	}
}

func extractAudioArgs(inputPath, outputPath, codec, bitrate string) []string {
	args := []string{
		"-y",
		"-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-c:a", encoderFor(codec),
	}
	if bitrate != "" {
		args = append(args, "-b:a", strings.TrimSuffix(bitrate, "k")+"k")
	}
	return append(args, outputPath)
}

func encoderFor(codec string) string {
	switch strings.ToLower(codec) {
	case "mp3":
		return "libmp3lame"
	case "m4a", "aac":
		return "aac"
	case "opus":
		return "libopus"
	case "vorbis", "ogg":
		return "libvorbis"
	default:
		return codec
	}
}
