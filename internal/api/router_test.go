package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/internal/service"
	"mailtriage/pkg/rbac"
	"mailtriage/pkg/util"
)

type fakeApproval struct {
	mu         sync.Mutex
	items      []model.PendingItem
	approveErr error
	approved   []string
	rejected   []string
}

func (f *fakeApproval) Pending() []model.PendingItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PendingItem(nil), f.items...)
}

func (f *fakeApproval) Approve(ctx context.Context, id, folder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return f.approveErr
	}
	for i, it := range f.items {
		if it.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			f.approved = append(f.approved, id+"->"+folder)
			return nil
		}
	}
	return service.ErrNotFound
}

func (f *fakeApproval) Reject(ctx context.Context, id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, id)
	return 0
}

func newTestRouter(approval ApprovalService, secret string, ready func() bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewTriageHandler(approval, zap.NewNop()), ready, nil, secret).Engine
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestListPending(t *testing.T) {
	queuedAt := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	fa := &fakeApproval{items: []model.PendingItem{{
		ID:         "m2",
		Subject:    "Preventivo lavori",
		From:       "ditta@example.com",
		Preview:    "buongiorno",
		Category:   model.CategoryQuotes,
		Confidence: 0.70,
		QueuedAt:   queuedAt,
	}}}
	r := newTestRouter(fa, "", nil)

	w := do(t, r, http.MethodGet, "/pending", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "m2", items[0]["id"])
	assert.Equal(t, "Quotes", items[0]["category"])
	assert.Equal(t, 0.70, items[0]["confidence"])
	assert.Equal(t, "", items[0]["building"])
}

func TestListPendingEmptyIsArray(t *testing.T) {
	r := newTestRouter(&fakeApproval{}, "", nil)

	w := do(t, r, http.MethodGet, "/pending", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestApproveStatusCodes(t *testing.T) {
	fa := &fakeApproval{items: []model.PendingItem{{ID: "m2"}}}
	r := newTestRouter(fa, "", nil)

	w := do(t, r, http.MethodPost, "/approve", `{"id":"m2","folder":"Archivio"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
	assert.Equal(t, []string{"m2->Archivio"}, fa.approved)

	w = do(t, r, http.MethodPost, "/approve", `{"id":"m2","folder":"Archivio"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", decodeBody(t, w)["status"])

	w = do(t, r, http.MethodPost, "/approve", `{"id":"m2"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/approve", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveEmptyFolderFromService(t *testing.T) {
	fa := &fakeApproval{approveErr: service.ErrEmptyFolder}
	r := newTestRouter(fa, "", nil)

	w := do(t, r, http.MethodPost, "/approve", `{"id":"m2","folder":" "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveGraphFailure(t *testing.T) {
	fa := &fakeApproval{approveErr: errors.New("graph move_message: status 503")}
	r := newTestRouter(fa, "", nil)

	w := do(t, r, http.MethodPost, "/approve", `{"id":"m2","folder":"Archivio"}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "503")
}

func TestRejectAlwaysOK(t *testing.T) {
	fa := &fakeApproval{}
	r := newTestRouter(fa, "", nil)

	w := do(t, r, http.MethodPost, "/reject", `{"id":"unknown"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
	assert.Equal(t, []string{"unknown"}, fa.rejected)

	w = do(t, r, http.MethodPost, "/reject", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	r := newTestRouter(&fakeApproval{}, "s3cret", nil)

	w := do(t, r, http.MethodGet, "/pending", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodGet, "/pending", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := util.GenerateJWT("alice", rbac.RoleOperator, "s3cret", time.Hour)
	require.NoError(t, err)
	w = do(t, r, http.MethodGet, "/pending", "", map[string]string{"Authorization": "Bearer " + tok})
	assert.Equal(t, http.StatusOK, w.Code)

	wrongKey, err := util.GenerateJWT("alice", rbac.RoleOperator, "other", time.Hour)
	require.NoError(t, err)
	w = do(t, r, http.MethodGet, "/pending", "", map[string]string{"Authorization": "Bearer " + wrongKey})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// health stays public
	w = do(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestViewerCannotApproveOrReject(t *testing.T) {
	fa := &fakeApproval{items: []model.PendingItem{{ID: "m2"}}}
	r := newTestRouter(fa, "s3cret", nil)

	viewer, err := util.GenerateJWT("bob", rbac.RoleViewer, "s3cret", time.Hour)
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + viewer}

	w := do(t, r, http.MethodGet, "/pending", "", auth)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/approve", `{"id":"m2","folder":"Archivio"}`, auth)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, http.MethodPost, "/reject", `{"id":"m2"}`, auth)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, fa.Pending(), 1)

	// unknown roles fall back to viewer
	odd, err := util.GenerateJWT("eve", "admin", "s3cret", time.Hour)
	require.NoError(t, err)
	w = do(t, r, http.MethodPost, "/reject", `{"id":"m2"}`, map[string]string{"Authorization": "Bearer " + odd})
	assert.Equal(t, http.StatusForbidden, w.Code)

	operator, err := util.GenerateJWT("alice", rbac.RoleOperator, "s3cret", time.Hour)
	require.NoError(t, err)
	w = do(t, r, http.MethodPost, "/approve", `{"id":"m2","folder":"Archivio"}`, map[string]string{"Authorization": "Bearer " + operator})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadiness(t *testing.T) {
	ready := false
	r := newTestRouter(&fakeApproval{}, "", func() bool { return ready })

	w := do(t, r, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = do(t, r, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessReportsGraphBreaker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	state := "closed"
	r := NewRouter(NewTriageHandler(&fakeApproval{}, zap.NewNop()),
		func() bool { return true },
		func() string { return state },
		"",
	).Engine

	w := do(t, r, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","graph":"closed"}`, w.Body.String())

	// an open breaker is reported but does not fail readiness
	state = "open"
	w = do(t, r, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","graph":"open"}`, w.Body.String())
}

func TestTraceHeaderAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeApproval{}, "", nil)

	w := do(t, r, http.MethodGet, "/healthz", "", map[string]string{"X-Trace-ID": "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get("X-Trace-ID"))

	w = do(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}
