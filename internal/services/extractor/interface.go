package extractor

import (
	"context"
	"strings"
)

// Extractor is the gateway's view of the media-extraction tool. It never
// interprets format identifiers itself; they only mean something to the
// implementation that produced them.
type Extractor interface {
	// Name identifies the backend in logs and health output
	Name() string

	// ExtractInfo resolves metadata for url without downloading anything
	ExtractInfo(ctx context.Context, url string) (*Info, error)

	// Download materializes the selected streams on disk
	Download(ctx context.Context, url string, opts Options) (*Result, error)
}

// Info is what the backend reports about a single video.
type Info struct {
	ID        string
	Title     string
	Thumbnail string
	Formats   []Format
}

// Format mirrors one entry of the backend's format list. Codec fields
// use the yt-dlp convention: "none" means the stream is absent, empty
// means the backend did not say.
type Format struct {
	FormatID   string
	Ext        string
	Resolution string
	FormatNote string
	VCodec     string
	ACodec     string
}

func (f Format) HasVideo() bool {
	return codecPresent(f.VCodec)
}

func (f Format) HasAudio() bool {
	return codecPresent(f.ACodec)
}

func codecPresent(codec string) bool {
	return codec != "" && codec != "none"
}

// AudioExtraction asks for the downloaded media to be converted to an
// audio-only container by the transcoder.
type AudioExtraction struct {
	Codec   string // e.g. "mp3"
	Quality string // kbps, e.g. "192"
}

// Options controls a single download.
type Options struct {
	// Format is a yt-dlp style selector, e.g. "22+bestaudio/best"
	Format string

	// OutputTemplate is the full output path with %(title)s and %(ext)s
	// placeholders
	OutputTemplate string

	// ExtractAudio is nil unless an audio-only conversion is requested
	ExtractAudio *AudioExtraction
}

// Result describes a finished download.
type Result struct {
	// Filename is the absolute path of the file the backend wrote
	Filename string
	Title    string
}

const (
	bestAudio        = "bestaudio"
	best             = "best"
	titlePlaceholder = "%(title)s"
	extPlaceholder   = "%(ext)s"
)

// OutputTemplate is the title-and-extension naming template.
const OutputTemplate = titlePlaceholder + "." + extPlaceholder

// MergeSelector requests formatID combined with the best audio stream,
// falling back to the best single file.
func MergeSelector(formatID string) string {
	return formatID + "+" + bestAudio + "/" + best
}

// AudioSelector requests the best audio-only stream.
func AudioSelector() string {
	return bestAudio + "/" + best
}

// Alternative is one "/"-separated branch of a selector; Video is empty
// when the branch is a keyword such as "best".
type Alternative struct {
	Video string
	Audio string
}

// ParseSelector splits the subset of selector syntax the gateway
// produces: alternatives separated by "/" and an optional "+" merge.
// Only two streams are merged; in "137+140+bestaudio" the client's own
// pair wins and the trailing stream is dropped.
func ParseSelector(selector string) []Alternative {
	var alts []Alternative
	for _, part := range strings.Split(selector, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		streams := strings.Split(part, "+")
		alt := Alternative{Video: streams[0]}
		if len(streams) > 1 {
			alt.Audio = streams[1]
		}
		alts = append(alts, alt)
	}
	return alts
}

// ExpandTemplate substitutes title and ext into template.
func ExpandTemplate(template, title, ext string) string {
	out := strings.ReplaceAll(template, titlePlaceholder, title)
	return strings.ReplaceAll(out, extPlaceholder, ext)
}
