package calls

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice_sales_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallsRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newServiceFixture(t, nil)
	engine := gin.New()
	NewHandler(f.svc, validator.New()).RegisterRoutes(engine.Group("/calls"))
	return engine
}

func do(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	router := newCallsRouter(t)

	rec := do(router, http.MethodPost, "/calls", `{"callId":"call-1","phone":"+5491100000001"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started struct {
		CallID string            `json:"callId"`
		Tools  []json.RawMessage `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "call-1", started.CallID)
	assert.NotEmpty(t, started.Tools)

	rec = do(router, http.MethodPost, "/calls/call-1/tools", `{"id":"fc-1","name":"qualify_lead","args":{"phone":"+5491100000001","capital_available":300,"trading_experience":"beginner","urgency":"medium"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var toolResp struct {
		ID       string         `json:"id"`
		Name     string         `json:"name"`
		Response map[string]any `json:"response"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toolResp))
	assert.Equal(t, "fc-1", toolResp.ID)
	assert.Equal(t, "WARM", toolResp.Response["tier"])

	rec = do(router, http.MethodPost, "/calls/call-1/usage", `{"sttSeconds":12,"llmInputTokens":800,"llmOutputTokens":120,"ttsCharacters":300}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/calls/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"callId":"call-1"`)

	rec = do(router, http.MethodPost, "/calls/call-1/end", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		CallID string `json:"callId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "call-1", summary.CallID)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/calls/call-1/metrics", "").Code)
}

func TestCallEndpointsRejectBadInput(t *testing.T) {
	router := newCallsRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/calls", `{"callId":"call-1"}`).Code)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "malformed json", path: "/calls/call-1/tools", body: `{`, want: http.StatusBadRequest},
		{name: "missing tool name", path: "/calls/call-1/tools", body: `{"args":{}}`, want: http.StatusBadRequest},
		{name: "negative usage", path: "/calls/call-1/usage", body: `{"sttSeconds":-1}`, want: http.StatusBadRequest},
		{name: "negative latency", path: "/calls/call-1/latency", body: `{"seconds":-0.5}`, want: http.StatusBadRequest},
		{name: "unknown call", path: "/calls/nope/tools", body: `{"name":"market_hours"}`, want: http.StatusNotFound},
		{name: "duplicate call", path: "/calls", body: `{"callId":"call-1"}`, want: http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, do(router, http.MethodPost, tc.path, tc.body).Code)
		})
	}
}

func TestListToolsEndpoint(t *testing.T) {
	rec := do(newCallsRouter(t), http.MethodGet, "/calls/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	names := make([]string, len(body.Tools))
	for i, tool := range body.Tools {
		names[i] = tool.Name
	}
	assert.Contains(t, names, ToolQualifyLead)
	assert.Contains(t, names, ToolMarketHours)
	assert.Len(t, names, 9)
}
