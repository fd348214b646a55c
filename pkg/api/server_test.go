package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osovm/veilmint/pkg/catalog"
	"github.com/osovm/veilmint/pkg/gate"
	"github.com/osovm/veilmint/pkg/mint"
	"github.com/osovm/veilmint/pkg/projector"
	"github.com/osovm/veilmint/pkg/store"
	"github.com/osovm/veilmint/pkg/tithe"
)

var friday = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	log := store.NewMemoryReceiptLog()
	ledger, err := mint.New(log, gate.DefaultPolicy(), tithe.Fractions{}, mint.WithClock(func() time.Time { return friday }))
	require.NoError(t, err)

	splitter, err := tithe.NewSplitter(0, tithe.Fractions{})
	require.NoError(t, err)

	srv, err := NewServer(ledger, log, catalog.Default(), projector.New(splitter, projector.WithSeed(1)),
		WithClock(func() time.Time { return friday }))
	require.NoError(t, err)
	return srv, srv.Routes(nil)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func mintBody(workID string) map[string]any {
	return map[string]any{
		"work_id":    workID,
		"principal":  "0xbino",
		"sector":     "software",
		"hours":      40,
		"quality":    0.95,
		"completion": 1.0,
		"witnesses":  9,
	}
}

func TestHealth(t *testing.T) {
	_, handler := newTestServer(t)
	w := get(handler, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMintHappyPath(t *testing.T) {
	_, handler := newTestServer(t)

	w := postJSON(t, handler, "/api/mint", mintBody("job_001"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var event mint.MintEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.InDelta(t, 34.912375, event.Impact.NetAse, 1e-9)
	assert.NotEmpty(t, event.Digest)

	// Wallet reflects the mint.
	w = get(handler, "/api/wallet/0xbino")
	require.Equal(t, http.StatusOK, w.Code)
	var wallet WalletResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wallet))
	assert.InDelta(t, 34.912375, wallet.Balance, 1e-9)
	require.Len(t, wallet.History, 1)

	// Receipt is retrievable.
	w = get(handler, "/api/receipts/"+event.ReceiptID)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMintOmittedCompletionMeansFull(t *testing.T) {
	_, handler := newTestServer(t)

	body := mintBody("job_001")
	delete(body, "completion")
	w := postJSON(t, handler, "/api/mint", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var event mint.MintEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.InDelta(t, 34.912375, event.Impact.NetAse, 1e-9)

	// An explicit zero is still honored as zero.
	body = mintBody("job_002")
	body["completion"] = 0.0
	w = postJSON(t, handler, "/api/mint", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.Zero(t, event.Impact.NetAse)
}

func TestMintDeniedIsForbidden(t *testing.T) {
	_, handler := newTestServer(t)

	body := mintBody("job_001")
	body["quality"] = 0.5
	w := postJSON(t, handler, "/api/mint", body)
	require.Equal(t, http.StatusForbidden, w.Code)

	var resp struct {
		Admitted bool   `json:"admitted"`
		Layer    string `json:"layer"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Admitted)
	assert.Equal(t, string(gate.LayerQuality), resp.Layer)
}

func TestMintDuplicateIsConflict(t *testing.T) {
	_, handler := newTestServer(t)

	w := postJSON(t, handler, "/api/mint", mintBody("job_001"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, handler, "/api/mint", mintBody("job_001"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	// Problem responses carry the request handle the middleware assigned.
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, "/api/mint", problem.Instance)
	assert.Equal(t, w.Header().Get("X-Request-ID"), problem.TraceID)
	assert.NotEmpty(t, problem.TraceID)
}

func TestMintSchemaRejectsBadBody(t *testing.T) {
	_, handler := newTestServer(t)

	// Missing required fields.
	w := postJSON(t, handler, "/api/mint", map[string]any{"work_id": "job_001"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown field.
	body := mintBody("job_002")
	body["extra"] = true
	w = postJSON(t, handler, "/api/mint", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Out-of-range quality.
	body = mintBody("job_003")
	body["quality"] = 1.5
	w = postJSON(t, handler, "/api/mint", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Not JSON at all.
	req := httptest.NewRequest(http.MethodPost, "/api/mint", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevertFlow(t *testing.T) {
	_, handler := newTestServer(t)

	w := postJSON(t, handler, "/api/mint", mintBody("job_001"))
	require.Equal(t, http.StatusCreated, w.Code)
	var event mint.MintEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))

	w = postJSON(t, handler, "/api/revert", map[string]any{
		"receipt_id": event.ReceiptID,
		"quality":    0.3,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var outcome mint.RevertOutcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, mint.RevertApplied, outcome.Status)

	w = postJSON(t, handler, "/api/revert", map[string]any{
		"receipt_id": "missing",
		"quality":    0.3,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProject(t *testing.T) {
	_, handler := newTestServer(t)

	w := postJSON(t, handler, "/api/project", map[string]any{
		"principals": 10,
		"days":       30,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var curve projector.SupplyCurve
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &curve))
	assert.Len(t, curve.Supply, 30)
	assert.Positive(t, curve.FinalSupply())

	w = postJSON(t, handler, "/api/project", map[string]any{
		"principals": 10,
		"days":       5,
		"daily_low":  8,
		"daily_high": 2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVeilEndpoints(t *testing.T) {
	_, handler := newTestServer(t)

	w := get(handler, "/api/veils")
	require.Equal(t, http.StatusOK, w.Code)
	var all []catalog.Veil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.NotEmpty(t, all)

	w = get(handler, "/api/veils?q=kalman")
	require.Equal(t, http.StatusOK, w.Code)
	var hits []catalog.Veil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, 2, hits[0].ID)

	w = get(handler, "/api/veils/1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(handler, "/api/veils/99999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(handler, "/api/veils/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiptsList(t *testing.T) {
	_, handler := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := postJSON(t, handler, "/api/mint", mintBody(fmt.Sprintf("job_%03d", i)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := get(handler, "/api/receipts?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	var receipts []json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipts))
	assert.Len(t, receipts, 2)

	w = get(handler, "/api/receipts?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfigAndTithe(t *testing.T) {
	_, handler := newTestServer(t)

	w := get(handler, "/api/config")
	require.Equal(t, http.StatusOK, w.Code)
	var policy gate.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &policy))
	assert.Equal(t, 7, policy.DailyCap)

	postJSON(t, handler, "/api/mint", mintBody("job_001"))
	w = get(handler, "/api/tithe")
	require.Equal(t, http.StatusOK, w.Code)
	var vault tithe.Allocation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vault))
	assert.InDelta(t, 1.337625, vault.Total, 1e-9)
}

func TestSLOEndpoint(t *testing.T) {
	_, handler := newTestServer(t)

	postJSON(t, handler, "/api/mint", mintBody("job_001"))
	w := get(handler, "/api/slo")
	require.Equal(t, http.StatusOK, w.Code)

	var statuses []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statuses))
	assert.Len(t, statuses, 3)
}

func TestRateLimiter(t *testing.T) {
	srv, err := NewServer(nil, nil, catalog.Default(), nil)
	require.NoError(t, err)
	handler := srv.Routes(NewGlobalRateLimiter(1, 1))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
}
