package accounts

import (
	"net/http"
	"strconv"
	"strings"

	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler exposes the catalog, recommendations and cost estimates.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/recommend", h.Recommend)
	rg.GET("/cost", h.Cost)
}

type catalogResponse struct {
	Accounts                []policy.Account `json:"accounts"`
	PipValueUSD             float64          `json:"pipValueUsd"`
	LotSize                 float64          `json:"lotSize"`
	ReferenceTradesPerMonth int              `json:"referenceTradesPerMonth"`
}

func (h *Handler) List(c *gin.Context) {
	catalog := h.engine.Catalog()
	httpkit.OK(c, catalogResponse{
		Accounts:                catalog.Accounts,
		PipValueUSD:             catalog.PipValueUSD,
		LotSize:                 catalog.LotSize,
		ReferenceTradesPerMonth: catalog.ReferenceTradesPerMonth,
	})
}

func (h *Handler) Recommend(c *gin.Context) {
	capital, err := strconv.ParseFloat(strings.TrimSpace(c.Query("capital")), 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "capital must be a number", nil)
		return
	}

	var exp domain.Experience
	if raw := c.Query("experience"); raw != "" {
		parsed, ok := domain.ParseExperience(raw)
		if !ok {
			httpkit.HandleError(c, apperr.Validation("invalid trading experience"))
			return
		}
		exp = parsed
	}

	priority, ok := ParsePriority(c.Query("priority"))
	if !ok {
		httpkit.HandleError(c, apperr.Validation("invalid priority"))
		return
	}

	rec, err := h.engine.Recommend(Profile{CapitalUSD: capital, Experience: exp, Priority: priority})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, rec)
}

func (h *Handler) Cost(c *gin.Context) {
	req := CostRequest{AccountType: c.Query("accountType")}

	trades, err := strconv.Atoi(c.DefaultQuery("tradesPerMonth", "0"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "tradesPerMonth must be an integer", nil)
		return
	}
	req.TradesPerMonth = trades

	if raw := c.Query("lotSize"); raw != "" {
		lots, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "lotSize must be a number", nil)
			return
		}
		req.LotSize = lots
	}
	if raw := c.Query("capital"); raw != "" {
		capital, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "capital must be a number", nil)
			return
		}
		req.CapitalUSD = &capital
	}

	est, err := h.engine.Estimate(req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, est)
}
