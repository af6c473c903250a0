package knowledge

import (
	"net/http"
	"strconv"

	"voice_sales_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/search", h.Search)
	rg.GET("/concepts/:concept", h.Explain)
	rg.GET("/market-hours", h.MarketHours)
	rg.POST("/reindex", h.Reindex)
}

type searchResponse struct {
	Query string    `json:"query"`
	Items []Snippet `json:"items"`
}

func (h *Handler) Search(c *gin.Context) {
	k := DefaultLimit
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > MaxLimit {
			httpkit.Error(c, http.StatusBadRequest, "k must be between 1 and 10", nil)
			return
		}
		k = parsed
	}

	query := c.Query("q")
	items, err := h.svc.Search(c.Request.Context(), query, k)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, searchResponse{Query: query, Items: items})
}

func (h *Handler) Explain(c *gin.Context) {
	concept, err := h.svc.Explain(c.Param("concept"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, concept)
}

func (h *Handler) MarketHours(c *gin.Context) {
	market, err := h.svc.MarketHours(c.Query("market"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, market)
}

func (h *Handler) Reindex(c *gin.Context) {
	n, err := h.svc.Reindex(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"indexed": n})
}
