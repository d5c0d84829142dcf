package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seat-checkin-backend/config"
	"seat-checkin-backend/internal/db"
	"seat-checkin-backend/internal/identity"
	"seat-checkin-backend/internal/liveview"
	"seat-checkin-backend/internal/reconcile"
	"seat-checkin-backend/internal/station"
	"seat-checkin-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

var testRows = []identity.Row{
	{"id": "NV001", "hoTen": "Trần Thị Bình", "phong": "Finance", "idCho": "A1", "maThe": "CARD-001"},
	{"id": "NV002", "hoTen": "Lê Văn Cường", "phong": "Board", "idCho": "A2", "maThe": "CARD-002"},
}

// newTestService builds a station on sqlite, or on the memory store when
// withDB is false.
func newTestService(t *testing.T, withDB bool, configure func(*config.Config)) *station.Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.CheckIn.StationID = "gate-api"
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	if configure != nil {
		configure(cfg)
	}
	config.ApplyDefaults(cfg)

	var svc *station.Service
	if withDB {
		gormDB := newTestDB(t)
		svc = station.NewService(cfg, store.NewGormStore(gormDB, 0), gormDB)
	} else {
		svc = station.NewService(cfg, store.NewMemoryStore(), nil)
	}
	t.Cleanup(svc.Sync().Close)

	svc.ImportRows(context.Background(), testRows)
	require.Eventually(t, func() bool { return svc.Sync().Phase() == liveview.PhaseLive }, 2*time.Second, 5*time.Millisecond)
	return svc
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Station-ID", "gate-api")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestScanLifecycle(t *testing.T) {
	svc := newTestService(t, true, nil)
	router := NewRouter(svc)

	w := doJSON(router, http.MethodPost, "/api/scans", gin.H{"code": "CARD-001", "method": "card"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode(t, w)
	assert.Equal(t, false, first["repeat"])
	assert.Equal(t, "card", first["scanMethod"])

	w = doJSON(router, http.MethodPost, "/api/scans", gin.H{"code": " CARD-001 "})
	require.Equal(t, http.StatusOK, w.Code)
	again := decode(t, w)
	assert.Equal(t, true, again["repeat"])
	assert.Equal(t, first["firstScanAt"], again["firstScanAt"])

	require.Eventually(t, func() bool {
		w := doJSON(router, http.MethodGet, "/api/checkins", nil)
		body := decode(t, w)
		list, _ := body["checkins"].([]any)
		return body["phase"] == "live" && len(list) == 1
	}, 2*time.Second, 10*time.Millisecond)

	w = doJSON(router, http.MethodGet, "/api/seats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	totals := decode(t, w)["totals"].(map[string]any)
	assert.Equal(t, float64(2), totals["total"])
	assert.Equal(t, float64(1), totals["checkedIn"])

	w = doJSON(router, http.MethodGet, "/api/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["groups"], 2)

	w = doJSON(router, http.MethodDelete, "/api/scans/CARD-001", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodPost, "/api/scans", gin.H{"code": "CARD-002", "method": "other"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(router, http.MethodDelete, "/api/scans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"succeeded":1,"failed":0}`, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["notifications"], "own scans are not notified")
}

func TestPostScan_Errors(t *testing.T) {
	svc := newTestService(t, false, nil)
	router := NewRouter(svc)

	w := doJSON(router, http.MethodPost, "/api/scans", gin.H{"code": "CARD-404"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["kind"])

	w = doJSON(router, http.MethodPost, "/api/scans", gin.H{"code": "CARD-001", "method": "nfc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/scans", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/scans/CARD-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWriteError(t *testing.T) {
	testCases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: x", reconcile.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: x", reconcile.ErrMissingIdentity), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", reconcile.ErrRemoteUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
	}
}

func TestRosterEndpoints(t *testing.T) {
	svc := newTestService(t, false, nil)
	router := NewRouter(svc)

	w := doJSON(router, http.MethodGet, "/api/roster", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["attendees"], 2)

	w = doJSON(router, http.MethodGet, "/api/roster", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = doJSON(router, http.MethodPut, "/api/roster", []map[string]any{
		{"id": "NV010", "Họ và tên": "Vũ Hà", "Mã thẻ": "CARD-010"},
		{"id": "NV011", "Họ và tên": "Đỗ Lan", "Mã thẻ": "CARD-010"},
		{"Họ và tên": "No Id", "Mã thẻ": "CARD-012"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(3), body["attendees"])
	assert.Len(t, body["problems"], 2)

	w = doJSON(router, http.MethodGet, "/api/roster", nil)
	assert.Empty(t, w.Header().Get("X-Cache"), "a new roster invalidates the cache")
	assert.Len(t, decode(t, w)["attendees"], 3)

	w = doJSON(router, http.MethodGet, "/api/roster/problems", nil)
	require.Equal(t, http.StatusOK, w.Code)
	problems := decode(t, w)["problems"].([]any)
	require.Len(t, problems, 2)
	kinds := []string{problems[0].(map[string]any)["kind"].(string), problems[1].(map[string]any)["kind"].(string)}
	assert.ElementsMatch(t, []string{"duplicate_credential", "missing_id"}, kinds)

	w = doJSON(router, http.MethodPut, "/api/roster", `{"not":"a list"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptions(t *testing.T) {
	svc := newTestService(t, true, nil)
	router := NewRouter(svc)

	w := doJSON(router, http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sub := gin.H{"endpoint": "https://push.example.com/abc", "p256dh": "key", "auth": "secret", "group_label": "Finance"}
	w = doJSON(router, http.MethodPut, "/api/subscriptions", sub)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	sub["group_label"] = "Board"
	w = doJSON(router, http.MethodPut, "/api/subscriptions", sub)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"group_label":"Board"}`, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/subscriptions", gin.H{"endpoint": "https://push.example.com/abc"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubscriptions_WithoutDatabase(t *testing.T) {
	router := NewRouter(newTestService(t, false, nil))

	w := doJSON(router, http.MethodPut, "/api/subscriptions", gin.H{"endpoint": "e", "p256dh": "k", "auth": "a"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := NewRouter(newTestService(t, false, nil))
	w := doJSON(router, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	router = NewRouter(newTestService(t, false, func(cfg *config.Config) { cfg.Push.PublicKey = "BPub" }))
	w = doJSON(router, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPub","enabled":false}`, w.Body.String())
}

func TestEvents(t *testing.T) {
	svc := newTestService(t, false, nil)
	server := httptest.NewServer(NewRouter(svc))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitFor := func(event string) {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed before %s", event)
				if line == "event:"+event {
					return
				}
			case <-ctx.Done():
				t.Fatalf("no %s event", event)
			}
		}
	}

	waitFor("view")

	_, err = svc.Engine().RegisterScan(context.Background(), "CARD-002", "card")
	require.NoError(t, err)
	waitFor("view")
}
