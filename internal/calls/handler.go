package calls

import (
	"net/http"

	"voice_sales_backend/platform/httpkit"
	"voice_sales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"google.golang.org/genai"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// ToolCallRequest is a function call forwarded by the conversation driver.
type ToolCallRequest struct {
	ID   string         `json:"id,omitempty" validate:"max=100"`
	Name string         `json:"name" validate:"required,max=64"`
	Args map[string]any `json:"args"`
}

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tools", h.ListTools)
	rg.GET("/active", h.Active)
	rg.GET("/stats", h.Stats)
	rg.POST("", h.Start)
	rg.POST("/:callID/end", h.End)
	rg.POST("/:callID/tools", h.InvokeTool)
	rg.POST("/:callID/usage", h.RecordUsage)
	rg.POST("/:callID/latency", h.RecordLatency)
	rg.GET("/:callID/metrics", h.Metrics)
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.Fields(err))
		return false
	}
	return true
}

func (h *Handler) ListTools(c *gin.Context) {
	httpkit.OK(c, gin.H{"tools": Declarations()})
}

func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Start(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

func (h *Handler) End(c *gin.Context) {
	summary, err := h.svc.End(c.Request.Context(), c.Param("callID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

func (h *Handler) InvokeTool(c *gin.Context) {
	var req ToolCallRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Dispatch(c.Request.Context(), c.Param("callID"), &genai.FunctionCall{
		ID:   req.ID,
		Name: req.Name,
		Args: req.Args,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) RecordUsage(c *gin.Context) {
	var req UsageRequest
	if !h.bind(c, &req) {
		return
	}

	summary, err := h.svc.RecordUsage(c.Request.Context(), c.Param("callID"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

func (h *Handler) RecordLatency(c *gin.Context) {
	var req LatencyRequest
	if !h.bind(c, &req) {
		return
	}

	summary, err := h.svc.RecordLatency(c.Request.Context(), c.Param("callID"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

func (h *Handler) Metrics(c *gin.Context) {
	summary, err := h.svc.Metrics(c.Param("callID"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, summary)
}

func (h *Handler) Stats(c *gin.Context) {
	httpkit.OK(c, h.svc.Stats())
}

func (h *Handler) Active(c *gin.Context) {
	calls, err := h.svc.Active(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": calls})
}
