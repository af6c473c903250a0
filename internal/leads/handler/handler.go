package handler

import (
	"net/http"
	"strconv"

	"voice_sales_backend/internal/leads/management"
	"voice_sales_backend/internal/leads/notes"
	"voice_sales_backend/internal/leads/qualification"
	"voice_sales_backend/internal/leads/scheduling"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/platform/apperr"
	"voice_sales_backend/platform/httpkit"
	"voice_sales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler exposes the leads slices over HTTP.
type Handler struct {
	qualification *qualification.Service
	management    *management.Service
	notes         *notes.Service
	scheduling    *scheduling.Service
	val           *validator.Validator
}

func New(q *qualification.Service, mgmt *management.Service, n *notes.Service, sched *scheduling.Service, val *validator.Validator) *Handler {
	return &Handler{qualification: q, management: mgmt, notes: n, scheduling: sched, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/qualify", h.Qualify)
	rg.GET("/:phone", h.GetByPhone)
	rg.GET("/:phone/history", h.History)
	rg.PATCH("/:phone/status", h.UpdateStatus)
	rg.GET("/:phone/notes", h.ListNotes)
	rg.POST("/:phone/notes", h.AddNote)
	rg.GET("/:phone/callbacks", h.ListCallbacks)
	rg.POST("/:phone/callbacks", h.ScheduleCallback)
}

func (h *Handler) RegisterCallbackRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id", h.GetCallback)
	rg.PATCH("/:id", h.UpdateCallback)
}

// bind decodes and validates the JSON body, writing the error response itself.
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

func (h *Handler) Qualify(c *gin.Context) {
	var req transport.QualifyLeadRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.qualification.Qualify(c.Request.Context(), req)
	if err != nil && !apperr.Is(err, apperr.KindPersistence) {
		httpkit.HandleError(c, err)
		return
	}

	// An unsaved decision is still the answer the caller needs.
	httpkit.OK(c, resp)
}

func (h *Handler) GetByPhone(c *gin.Context) {
	lead, err := h.management.GetByPhone(c.Request.Context(), c.Param("phone"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) History(c *gin.Context) {
	history, err := h.management.History(c.Request.Context(), c.Param("phone"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, history)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req transport.UpdateStatusRequest
	if !h.bind(c, &req) {
		return
	}

	lead, err := h.management.UpdateStatus(c.Request.Context(), c.Param("phone"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) ListNotes(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			httpkit.Error(c, http.StatusBadRequest, "limit must be between 1 and 200", nil)
			return
		}
		limit = parsed
	}

	list, err := h.notes.List(c.Request.Context(), c.Param("phone"), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, list)
}

func (h *Handler) AddNote(c *gin.Context) {
	var req transport.CreateNoteRequest
	if !h.bind(c, &req) {
		return
	}

	note, err := h.notes.Add(c.Request.Context(), c.Param("phone"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, note)
}

func (h *Handler) ListCallbacks(c *gin.Context) {
	list, err := h.scheduling.List(c.Request.Context(), c.Param("phone"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, list)
}

func (h *Handler) ScheduleCallback(c *gin.Context) {
	var req transport.ScheduleCallbackRequest
	if !h.bind(c, &req) {
		return
	}

	cb, err := h.scheduling.Schedule(c.Request.Context(), c.Param("phone"), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, cb)
}

func (h *Handler) GetCallback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	cb, err := h.scheduling.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, cb)
}

func (h *Handler) UpdateCallback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.UpdateCallbackStatusRequest
	if !h.bind(c, &req) {
		return
	}

	cb, err := h.scheduling.UpdateStatus(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, cb)
}
