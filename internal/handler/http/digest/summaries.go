package digest

import (
	"log/slog"
	"net/http"
	"time"

	"pulse-digest/internal/common/pagination"
	"pulse-digest/internal/config"
	"pulse-digest/internal/handler/http/respond"
)

// SummariesHandler lists the summary archive for a window, paginated.
type SummariesHandler struct {
	Arch          Archive
	Cfg           *config.PipelineConfig
	PaginationCfg pagination.Config
	Logger        *slog.Logger
}

// ServeHTTP 要約一覧取得
// @Summary      要約アーカイブの取得（ページネーション対応）
// @Description  指定ウィンドウ内の要約を新しい順に返します。重複と判定された要約も duplicate_of 付きで含まれます。
// @Tags         summaries
// @Produce      json
// @Param        window_hours query int false "さかのぼる時間（時間）" default(24)
// @Param        page         query int false "ページ番号 (1-based)" default(1) minimum(1)
// @Param        page_size    query int false "1ページあたりの件数" default(20) maximum(100)
// @Success      200 {object} pagination.Response[SummaryDTO] "ページネーション付き要約一覧"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/summaries [get]
func (h SummariesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := pagination.ParseQueryParams(r, h.PaginationCfg)

	windowHours := intQuery(r, "window_hours", h.Cfg.WindowHours)
	if windowHours < 0 {
		windowHours = 0
	}
	to := time.Now().UTC()
	from := to.Add(-time.Duration(windowHours) * time.Hour)

	page, err := h.Arch.ListSummaries(r.Context(), from, to, params)
	if err != nil {
		pagination.RecordError("database")
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]SummaryDTO, 0, len(page.Data))
	for _, m := range page.Data {
		dtos = append(dtos, summaryDTO(m))
	}

	pagination.RecordRequest(http.StatusOK, params.Page)
	pagination.RecordDuration("summaries", time.Since(start).Seconds())
	pagination.UpdateTotalCount(page.Pagination.Total)

	respond.JSON(w, http.StatusOK, pagination.NewResponse(dtos, page.Pagination))
}
