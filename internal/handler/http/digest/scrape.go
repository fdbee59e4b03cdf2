package digest

import (
	"fmt"
	"log/slog"
	"net/http"

	"pulse-digest/internal/config"
	"pulse-digest/internal/handler/http/requestid"
	"pulse-digest/internal/handler/http/respond"
)

// ScrapeHandler starts a harvest-only run (Scrape and Process stages).
type ScrapeHandler struct {
	Pipe   Pipeline
	Cfg    *config.PipelineConfig
	Logger *slog.Logger
}

// ServeHTTP 収集ラン開始
// @Summary      収集のみのラン開始
// @Description  収集と本文取得だけをバックグラウンドで実行します。要約・配信は行いません。
// @Tags         runs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body runRequest false "ランのパラメータ（window_hours のみ有効）"
// @Success      202 {object} RunDTO "開始されたラン"
// @Failure      400 {string} string "リクエストが不正"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/scrape [post]
func (h ScrapeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	windowHours := h.Cfg.WindowHours
	if req.WindowHours != nil {
		windowHours = *req.WindowHours
	}

	run, err := h.Pipe.StartScrape(r.Context(), windowHours)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	h.Logger.Info("scrape run started",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.Int64("run_id", run.ID),
		slog.Int("window_hours", run.WindowHours))
	respond.JSON(w, http.StatusAccepted, runDTO(run))
}
