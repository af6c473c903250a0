package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/leads/management"
	"voice_sales_backend/internal/leads/notes"
	"voice_sales_backend/internal/leads/qualification"
	"voice_sales_backend/internal/leads/repository"
	"voice_sales_backend/internal/leads/scheduling"
	"voice_sales_backend/internal/leads/transport"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/logger"
	"voice_sales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plusPhones struct{}

func (plusPhones) Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "+") {
		return "", errors.New("invalid")
	}
	return s, nil
}

type brokenWriter struct {
	*repository.MemoryStore
}

func (brokenWriter) Upsert(context.Context, string, repository.Mutator) (domain.Lead, error) {
	return domain.Lead{}, errors.New("database unavailable")
}

func newRouter(t *testing.T, qualStore qualification.Store) (*gin.Engine, *repository.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	if qualStore == nil {
		qualStore = store
	}
	bus := events.NewInMemoryBus(logger.Nop())
	phones := plusPhones{}

	h := New(
		qualification.New(qualStore, phones, policy.Default().Scoring, bus, logger.Nop()),
		management.New(store, phones, bus),
		notes.New(store, phones),
		scheduling.New(store, phones, bus, "UTC"),
		validator.New(),
	)

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/leads"))
	h.RegisterCallbackRoutes(engine.Group("/callbacks"))
	return engine, store
}

func do(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestQualifyEndpoint(t *testing.T) {
	engine, store := newRouter(t, nil)

	rec := do(engine, http.MethodPost, "/leads/qualify",
		`{"phone":"+5491177770000","capitalAvailable":5000,"tradingExperience":"experienced","urgency":"high"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp transport.QualifyLeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.TierHot, resp.Tier)
	assert.Equal(t, 100, resp.Score)
	assert.Equal(t, domain.ActionImmediateHandoff, resp.RecommendedAction)
	assert.True(t, resp.Persisted)

	_, err := store.GetByPhone(context.Background(), "+5491177770000")
	assert.NoError(t, err)
}

func TestQualifyEndpointReportsUnsavedDecision(t *testing.T) {
	engine, _ := newRouter(t, brokenWriter{repository.NewMemoryStore()})

	rec := do(engine, http.MethodPost, "/leads/qualify",
		`{"phone":"+5491177770001","capitalAvailable":50,"tradingExperience":"none","urgency":"low"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transport.QualifyLeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.TierCold, resp.Tier)
	assert.False(t, resp.Persisted)
	assert.NotEmpty(t, resp.PersistenceError)
}

func TestQualifyEndpointValidation(t *testing.T) {
	engine, _ := newRouter(t, nil)

	rec := do(engine, http.MethodPost, "/leads/qualify", `{"phone":"+5491177770002","capitalAvailable":-5,"tradingExperience":"none","urgency":"low"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(engine, http.MethodPost, "/leads/qualify", `{"phone":"+5491177770002","tradingExperience":"wizard","urgency":"low"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")

	rec = do(engine, http.MethodPost, "/leads/qualify", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeadLookupAndNotes(t *testing.T) {
	engine, _ := newRouter(t, nil)

	rec := do(engine, http.MethodGet, "/leads/+5491177770003", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(engine, http.MethodGet, "/leads/+5491177770003/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"found":false`)

	rec = do(engine, http.MethodPost, "/leads/+5491177770003/notes", `{"noteType":"objection","content":"fees"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(engine, http.MethodGet, "/leads/+5491177770003/notes?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list transport.NotesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "fees", list.Items[0].Content)

	rec = do(engine, http.MethodGet, "/leads/+5491177770003/notes?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackEndpoints(t *testing.T) {
	engine, _ := newRouter(t, nil)

	rec := do(engine, http.MethodPost, "/leads/+5491177770004/callbacks", `{"preferredTime":"tomorrow at noon"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cb transport.CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cb))

	rec = do(engine, http.MethodPatch, "/callbacks/"+cb.ID.String(), `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(engine, http.MethodPatch, "/callbacks/"+cb.ID.String(), `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(engine, http.MethodPatch, "/callbacks/not-a-uuid", `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
