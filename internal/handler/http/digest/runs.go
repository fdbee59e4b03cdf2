package digest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"pulse-digest/internal/config"
	"pulse-digest/internal/handler/http/pathutil"
	"pulse-digest/internal/handler/http/requestid"
	"pulse-digest/internal/handler/http/respond"
	"pulse-digest/internal/usecase/archive"
	"pulse-digest/internal/usecase/pipeline"
)

const runsPathPrefix = "/api/v1/runs/"

// runRequest is the body of POST /api/v1/runs and POST /api/v1/scrape.
// Absent fields fall back to the configured defaults; window_hours zero is
// taken literally and yields an empty window.
type runRequest struct {
	WindowHours *int  `json:"window_hours" example:"24"`
	TopN        int   `json:"top_n" example:"10"`
	SkipEmail   *bool `json:"skip_email" example:"false"`
}

func (req *runRequest) options(cfg *config.PipelineConfig) pipeline.Options {
	opts := pipeline.Options{WindowHours: cfg.WindowHours, TopN: req.TopN, SkipEmail: cfg.SkipEmail}
	if req.WindowHours != nil {
		opts.WindowHours = *req.WindowHours
	}
	if req.SkipEmail != nil {
		opts.SkipEmail = *req.SkipEmail
	}
	return opts
}

// decodeRunRequest tolerates an empty body: a bare POST runs with defaults.
func decodeRunRequest(r *http.Request) (runRequest, error) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

// RunCreateHandler starts a full pipeline run in the background.
type RunCreateHandler struct {
	Pipe   Pipeline
	Cfg    *config.PipelineConfig
	Logger *slog.Logger
}

// ServeHTTP パイプラインラン開始
// @Summary      パイプラインランの開始
// @Description  6ステージのパイプラインをバックグラウンドで開始し、ランのハンドルを返します。
// @Tags         runs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body runRequest false "ランのパラメータ（省略時は設定値）"
// @Success      202 {object} RunDTO "開始されたラン"
// @Failure      400 {string} string "リクエストが不正"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/runs [post]
func (h RunCreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	run, err := h.Pipe.StartRun(r.Context(), req.options(h.Cfg))
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	h.Logger.Info("run started",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.Int64("run_id", run.ID),
		slog.Int("window_hours", run.WindowHours),
		slog.Int("top_n", run.TopN))
	respond.JSON(w, http.StatusAccepted, runDTO(run))
}

// RunListHandler lists recent runs, newest first.
type RunListHandler struct {
	Arch Archive
}

// ServeHTTP ラン一覧取得
// @Summary      ラン履歴の取得
// @Tags         runs
// @Produce      json
// @Param        limit query int false "最大件数" default(50) maximum(200)
// @Success      200 {array} RunDTO
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/runs [get]
func (h RunListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 0)

	runs, err := h.Arch.Runs(r.Context(), limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, runDTO(run))
	}
	respond.JSON(w, http.StatusOK, dtos)
}

// RunGetHandler returns one run by ID.
type RunGetHandler struct {
	Arch Archive
}

// ServeHTTP ラン取得
// @Summary      ランの取得
// @Tags         runs
// @Produce      json
// @Param        id path int true "ランID"
// @Success      200 {object} RunDTO
// @Failure      400 {string} string "IDが不正"
// @Failure      404 {string} string "ランが存在しない"
// @Router       /api/v1/runs/{id} [get]
func (h RunGetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, runsPathPrefix)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	run, err := h.Arch.Run(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrRunNotFound):
			respond.SafeError(w, http.StatusNotFound, err)
		case errors.Is(err, archive.ErrInvalidRunID):
			respond.SafeError(w, http.StatusBadRequest, err)
		default:
			respond.SafeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	respond.JSON(w, http.StatusOK, runDTO(run))
}

// RunCancelHandler cancels an in-flight run, or prunes the record of a
// finished one. Deleting a run that is running outside this process is a
// 409: the record exists but its owner is still writing to it.
type RunCancelHandler struct {
	Pipe   Pipeline
	Arch   Archive
	Logger *slog.Logger
}

// ServeHTTP ランキャンセル・削除
// @Summary      ランのキャンセルまたは削除
// @Description  実行中のランには中断を要求します（次のステージ境界で cancelled として確定）。終了済みのランは記録を削除し、孤立したベクタも併せて掃除します。
// @Tags         runs
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "ランID"
// @Success      200 {object} map[string]string "削除完了"
// @Success      202 {object} map[string]string "キャンセル受理"
// @Failure      400 {string} string "IDが不正"
// @Failure      404 {string} string "ランが存在しない"
// @Failure      409 {string} string "ランは他プロセスで実行中"
// @Router       /api/v1/runs/{id} [delete]
func (h RunCancelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, runsPathPrefix)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if h.Pipe.Cancel(id) {
		h.Logger.Info("run cancellation requested",
			slog.String("request_id", requestid.FromContext(r.Context())),
			slog.Int64("run_id", id))
		respond.JSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
		return
	}

	// 非アクティブなラン: 終了済みなら記録を削除。実行中の記録が残って
	// いる場合は別プロセス（ワーカー）のランなので触らない。
	if err := h.Arch.Prune(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, archive.ErrRunNotFound):
			respond.SafeError(w, http.StatusNotFound, err)
		case errors.Is(err, archive.ErrRunActive):
			respond.SafeError(w, http.StatusConflict, err)
		default:
			respond.SafeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	h.Logger.Info("run pruned",
		slog.String("request_id", requestid.FromContext(r.Context())),
		slog.Int64("run_id", id))
	respond.JSON(w, http.StatusOK, map[string]string{"status": "pruned"})
}
