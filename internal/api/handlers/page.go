package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type PageHandler struct {
	title string
}

func NewPageHandler(title string) *PageHandler {
	return &PageHandler{title: title}
}

// Index renders the front end. The engine must have the web templates
// loaded.
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title": h.title,
	})
}
