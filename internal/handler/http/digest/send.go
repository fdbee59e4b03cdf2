package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pulse-digest/internal/config"
	"pulse-digest/internal/handler/http/requestid"
	"pulse-digest/internal/handler/http/respond"
	"pulse-digest/internal/usecase/pipeline"
)

// sendRequest is the body of POST /api/v1/digest/send. Recipient and subject
// override the configured defaults for this one delivery.
type sendRequest struct {
	WindowHours *int   `json:"window_hours" example:"24"`
	TopN        int    `json:"top_n" example:"10"`
	Recipient   string `json:"recipient" example:"reader@example.com"`
	Subject     string `json:"subject" example:"AI News Digest"`
}

// sendResponse reports one on-demand delivery.
type sendResponse struct {
	RunID  int64      `json:"run_id" example:"42"`
	SentAt *time.Time `json:"sent_at,omitempty"`
	Count  int        `json:"count" example:"10"`
}

// SendHandler ranks the already-harvested window and sends the digest now.
// The skip-email toggle does not apply: this operation exists to send.
type SendHandler struct {
	Pipe   Pipeline
	Cfg    *config.PipelineConfig
	Logger *slog.Logger
}

// ServeHTTP ダイジェスト即時送信
// @Summary      ダイジェストの即時送信
// @Description  収集済みのウィンドウをランキングし、その場でメール送信します。同期実行です。
// @Tags         digest
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body sendRequest false "送信パラメータ（省略時は設定値）"
// @Success      200 {object} sendResponse "送信結果"
// @Failure      400 {string} string "リクエストが不正"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/digest/send [post]
func (h SendHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	opts := pipeline.Options{
		WindowHours: h.Cfg.WindowHours,
		TopN:        req.TopN,
		Recipient:   req.Recipient,
		Subject:     req.Subject,
	}
	if req.WindowHours != nil {
		opts.WindowHours = *req.WindowHours
	}

	run, delivery, err := h.Pipe.SendDigest(r.Context(), opts)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := sendResponse{RunID: run.ID, Count: delivery.Emailed}
	if !delivery.SentAt.IsZero() {
		sentAt := delivery.SentAt
		resp.SentAt = &sentAt
	}

	h.Logger.Info("digest sent on demand",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.Int64("run_id", run.ID),
		slog.Int("count", resp.Count))
	respond.JSON(w, http.StatusOK, resp)
}
