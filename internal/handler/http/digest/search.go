package digest

import (
	"errors"
	"net/http"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/handler/http/respond"
	"pulse-digest/internal/usecase/search"
)

// searchResponse wraps the hits with the effective query.
type searchResponse struct {
	Query string         `json:"query"`
	Hits  []SearchHitDTO `json:"hits"`
}

// SearchHandler answers semantic search over the vector index.
type SearchHandler struct {
	Searcher Searcher
}

// ServeHTTP セマンティック検索
// @Summary      要約アーカイブのセマンティック検索
// @Description  クエリを埋め込み、コサイン類似度で近い要約を返します。
// @Tags         search
// @Produce      json
// @Param        query     query string true  "検索クエリ"
// @Param        k         query int    false "最大件数" default(10) maximum(100)
// @Param        kind      query string false "video または web"
// @Param        category  query string false "official/research/news/safety"
// @Success      200 {object} searchResponse
// @Failure      400 {string} string "クエリが不正"
// @Failure      500 {string} string "サーバーエラー"
// @Router       /api/v1/search [get]
func (h SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := search.Request{
		Query: q.Get("query"),
		K:     intQuery(r, "k", 0),
		Filter: entity.SearchFilter{
			Kind:     entity.ArticleKind(q.Get("kind")),
			Category: entity.Category(q.Get("category")),
		},
	}

	hits, err := h.Searcher.Search(r.Context(), req)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]SearchHitDTO, 0, len(hits))
	for _, hit := range hits {
		dtos = append(dtos, searchHitDTO(hit))
	}
	respond.JSON(w, http.StatusOK, searchResponse{Query: req.Query, Hits: dtos})
}
