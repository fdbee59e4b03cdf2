package digest

import (
	"errors"
	"net/http"
	"strconv"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/handler/http/respond"
	"pulse-digest/internal/usecase/archive"
)

// itemsResponse splits the recent items by kind.
type itemsResponse struct {
	Videos []VideoItemDTO `json:"videos"`
	Webs   []WebItemDTO   `json:"webs"`
}

// ItemsHandler lists recently harvested items.
type ItemsHandler struct {
	Arch Archive
}

// ServeHTTP アイテム一覧取得
// @Summary      収集済みアイテムの取得
// @Description  直近に公開されたアイテムを新しい順に返します。kind で動画かウェブ記事に絞れます。
// @Tags         items
// @Produce      json
// @Param        kind  query string false "video または web（省略時は両方）"
// @Param        limit query int    false "最大件数" default(50) maximum(200)
// @Success      200 {object} itemsResponse
// @Failure      400 {string} string "kind が不正"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/items [get]
func (h ItemsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind := entity.ArticleKind(r.URL.Query().Get("kind"))
	limit := intQuery(r, "limit", 0)

	items, err := h.Arch.Items(r.Context(), kind, limit)
	if err != nil {
		if errors.Is(err, archive.ErrInvalidKind) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := itemsResponse{
		Videos: make([]VideoItemDTO, 0, len(items.Videos)),
		Webs:   make([]WebItemDTO, 0, len(items.Webs)),
	}
	for _, v := range items.Videos {
		resp.Videos = append(resp.Videos, VideoItemDTO{
			VideoID:     v.VideoID,
			ChannelID:   v.ChannelID,
			Title:       v.Title,
			URL:         v.URL,
			PublishedAt: v.PublishedAt,
			HasBody:     v.Transcript != "",
		})
	}
	for _, wi := range items.Webs {
		resp.Webs = append(resp.Webs, WebItemDTO{
			ID:          wi.GUID,
			SourceName:  wi.SourceName,
			Title:       wi.Title,
			URL:         wi.URL,
			Category:    string(wi.Category),
			PublishedAt: wi.PublishedAt,
		})
	}
	respond.JSON(w, http.StatusOK, resp)
}

// intQuery reads an integer query parameter, falling back on absent or
// unparseable values. Listing endpoints clamp downstream instead of 400ing.
func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
