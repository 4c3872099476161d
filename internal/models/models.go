package models

// AudioOnlyFormatID is the synthetic format offered by the persistent
// server. It is not a real extractor format: it asks for the best audio
// stream converted to mp3.
const AudioOnlyFormatID = "mp3"

type VideoInfoRequest struct {
	URL string `json:"url" example:"https://www.youtube.com/watch?v=dQw4w9WgXcQ"`
}

type VideoInfoResponse struct {
	Title     string             `json:"title"`
	Thumbnail string             `json:"thumbnail"`
	Formats   []FormatDescriptor `json:"formats"`
}

type FormatDescriptor struct {
	FormatID   string `json:"format_id" example:"22"`
	Ext        string `json:"ext" example:"mp4"`
	Resolution string `json:"resolution" example:"1280x720"`
	FormatNote string `json:"format_note" example:"720p"`
}

// AudioOnlyFormat is the descriptor appended for AudioOnlyFormatID.
func AudioOnlyFormat() FormatDescriptor {
	return FormatDescriptor{
		FormatID:   AudioOnlyFormatID,
		Ext:        "mp3",
		Resolution: "Audio Only",
		FormatNote: "Best Audio",
	}
}

type DownloadRequest struct {
	URL      string `json:"url" example:"https://www.youtube.com/watch?v=dQw4w9WgXcQ"`
	FormatID string `json:"format_id" example:"22"`
}

type DownloadResponse struct {
	DownloadPath string `json:"download_path" example:"Never Gonna Give You Up.mp4"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"URL is required"`
}
