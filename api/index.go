// Package handler is the serverless entry point. The platform invokes
// Handler for every request; only the temp directory is writable and
// ffmpeg is not installed.
package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	_ "github.com/denisAlshanov/mediafetch/docs" // Import for swagger docs
	"github.com/denisAlshanov/mediafetch/internal/app"
	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/models"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

var (
	initOnce sync.Once
	engine   http.Handler
	initErr  error
)

func setup() {
	cfg, err := config.LoadWithMode(config.ModeServerless)
	if err != nil {
		initErr = err
		return
	}

	gateway, err := app.New(cfg)
	if err != nil {
		initErr = err
		return
	}
	engine = gateway.Router.Engine()
}

// Handler serves one request. Warm instances reuse the engine built on
// the first call.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(setup)

	if initErr != nil {
		utils.GetLogger().WithError(initErr).Error("Failed to initialize gateway")
		w.Header().Set("Content-Type", gin.MIMEJSON)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: utils.MsgInternal})
		return
	}

	engine.ServeHTTP(w, r)
}
