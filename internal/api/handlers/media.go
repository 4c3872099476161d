package handlers

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/denisAlshanov/mediafetch/internal/models"
	"github.com/denisAlshanov/mediafetch/internal/services/downloader"
	"github.com/denisAlshanov/mediafetch/internal/services/storage"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

type MediaHandler struct {
	downloader *downloader.Downloader
	storage    *storage.Local
	mirror     *storage.Mirror
}

func NewMediaHandler(downloader *downloader.Downloader, storage *storage.Local, mirror *storage.Mirror) *MediaHandler {
	return &MediaHandler{
		downloader: downloader,
		storage:    storage,
		mirror:     mirror,
	}
}

// GetVideoInfo godoc
// @Summary List downloadable formats
// @Description Resolve a video URL and list the mp4 formats that carry both video and audio. The persistent server also offers an "mp3" audio-only entry.
// @Tags media
// @Accept json
// @Produce json
// @Param request body models.VideoInfoRequest true "Video URL"
// @Success 200 {object} models.VideoInfoResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /get_video_info [post]
func (h *MediaHandler) GetVideoInfo(c *gin.Context) {
	var req models.VideoInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogWarn(c.Request.Context(), "Invalid request body", utils.Fields{"error": err.Error()})
		h.errorResponse(c, utils.NewInvalidRequestError(utils.MsgInvalidBody))
		return
	}

	c.Set(utils.LogKeyURL, req.URL)

	response, err := h.downloader.GetVideoInfo(c.Request.Context(), req)
	if err != nil {
		h.errorResponse(c, utils.AsAppError(err))
		return
	}

	c.JSON(http.StatusOK, response)
}

// Download godoc
// @Summary Download a format into storage
// @Description Fetch the chosen format (merged with the best audio) into the storage directory and return the path to retrieve it from /downloads.
// @Tags media
// @Accept json
// @Produce json
// @Param request body models.DownloadRequest true "Video URL and format"
// @Success 200 {object} models.DownloadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /download [post]
func (h *MediaHandler) Download(c *gin.Context) {
	var req models.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogWarn(c.Request.Context(), "Invalid request body", utils.Fields{"error": err.Error()})
		h.errorResponse(c, utils.NewInvalidRequestError(utils.MsgInvalidBody))
		return
	}

	c.Set(utils.LogKeyURL, req.URL)
	c.Set(utils.LogKeyFormatID, req.FormatID)

	response, err := h.downloader.Download(c.Request.Context(), req)
	if err != nil {
		h.errorResponse(c, utils.AsAppError(err))
		return
	}
	c.Set(utils.LogKeyDownloadPath, response.DownloadPath)

	c.JSON(http.StatusOK, response)
}

// ServeFile godoc
// @Summary Retrieve a stored file
// @Description Stream a previously downloaded file as an attachment. When the file is only in the object mirror the response redirects to a presigned URL.
// @Tags media
// @Produce application/octet-stream
// @Param filename path string true "Stored file path"
// @Success 200 {file} binary "File contents"
// @Success 302 "Redirect to the mirrored copy"
// @Failure 404 {string} string "404 page not found"
// @Router /downloads/{filename} [get]
func (h *MediaHandler) ServeFile(c *gin.Context) {
	ctx := c.Request.Context()
	name := strings.TrimPrefix(c.Param("filename"), "/")
	c.Set(utils.LogKeyDownloadPath, name)

	file, info, err := h.storage.Open(name)
	if err != nil {
		url, ok, err := h.mirror.URL(ctx, name)
		if err != nil {
			utils.LogError(ctx, "Failed to look up mirrored file", err, utils.Fields{"file": name})
		}
		if ok {
			utils.LogInfo(ctx, "Redirecting to mirrored file", utils.Fields{"file": name})
			c.Redirect(http.StatusFound, url)
			return
		}

		// Directories are never listed.
		c.String(http.StatusNotFound, "404 page not found")
		return
	}
	defer file.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()})
	if disposition == "" {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition)

	// ServeContent handles Range and conditional requests without the
	// index.html redirects of http.FileServer.
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

func (h *MediaHandler) errorResponse(c *gin.Context, err *utils.AppError) {
	if err.Cause != nil {
		_ = c.Error(err.Cause)
	}
	c.JSON(err.StatusCode, models.ErrorResponse{Error: err.Message})
}
