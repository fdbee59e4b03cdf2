package digest

import (
	"net/http"

	"pulse-digest/internal/handler/http/respond"
)

// StatsHandler reports the corpus and engine snapshot.
type StatsHandler struct {
	Arch Archive
}

// ServeHTTP 統計取得
// @Summary      コーパスとエンジンの統計
// @Description  保存件数、ベクトル件数、重複件数、直近のランと実行中ラン数を返します。
// @Tags         stats
// @Produce      json
// @Success      200 {object} StatsDTO
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/stats [get]
func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st, err := h.Arch.Stats(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dto := StatsDTO{
		Videos:     st.Videos,
		Webs:       st.Webs,
		Summaries:  st.Summaries,
		Duplicates: st.Duplicates,
		Vectors:    st.Vectors,
		ActiveRuns: st.ActiveRuns,
	}
	if st.LastRun != nil {
		last := runDTO(st.LastRun)
		dto.LastRun = &last
	}
	respond.JSON(w, http.StatusOK, dto)
}
