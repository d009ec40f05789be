package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sitsmart/coach/internal/errors"
	"github.com/sitsmart/coach/internal/posture"
)

// mockMonitor for testing.
type mockMonitor struct {
	status    posture.Status
	hasStatus bool
	snapshot  []byte
	paused    bool
	taken     bool
}

func newMockMonitor() *mockMonitor {
	return &mockMonitor{
		status: posture.Status{
			Lines:       []string{"Elbow Angle OK (90°)", "Distance OK (85 cm)", "Looking Center"},
			Seq:         3,
			GeneratedAt: time.Now(),
		},
		hasStatus: true,
		snapshot:  []byte{0xff, 0xd8, 0xff},
	}
}

func (m *mockMonitor) Latest() (posture.Status, bool) { return m.status, m.hasStatus }

func (m *mockMonitor) TakeNewest() (posture.Status, bool) {
	if m.taken || !m.hasStatus {
		return posture.Status{}, false
	}
	m.taken = true
	return m.status, true
}

func (m *mockMonitor) Snapshot(maxWidth int) ([]byte, error) {
	if m.snapshot == nil {
		return nil, errors.New(errors.CodeUnavailable, "no preview captured yet")
	}
	return m.snapshot, nil
}

func (m *mockMonitor) SetPaused(paused bool) { m.paused = paused }
func (m *mockMonitor) Paused() bool          { return m.paused }

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}
}

func TestHandleStatus(t *testing.T) {
	mon := newMockMonitor()
	srv := New(mon, nil, 100*time.Millisecond)

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Lines  []string `json:"lines"`
		Seq    uint64   `json:"seq"`
		Paused bool     `json:"paused"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(body.Lines) != 3 || body.Seq != 3 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandleStatusBeforeFirstFrame(t *testing.T) {
	mon := newMockMonitor()
	mon.hasStatus = false
	srv := New(mon, nil, 100*time.Millisecond)

	req := httptest.NewRequest("GET", "/api/status", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleSnapshot(t *testing.T) {
	mon := newMockMonitor()
	srv := New(mon, nil, 100*time.Millisecond)

	req := httptest.NewRequest("GET", "/api/snapshot?width=160", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q, want image/jpeg", ct)
	}
}

func TestHandleSnapshotValidation(t *testing.T) {
	srv := New(newMockMonitor(), nil, 100*time.Millisecond)

	for _, width := range []string{"0", "-5", "99999", "abc"} {
		req := httptest.NewRequest("GET", "/api/snapshot?width="+width, http.NoBody)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("width %q: status = %d, want %d", width, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleSnapshotNotReady(t *testing.T) {
	mon := newMockMonitor()
	mon.snapshot = nil
	srv := New(mon, nil, 100*time.Millisecond)

	req := httptest.NewRequest("GET", "/api/snapshot", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMonitorStartStop(t *testing.T) {
	mon := newMockMonitor()
	srv := New(mon, nil, 100*time.Millisecond)
	handler := srv.Handler()

	req := httptest.NewRequest("POST", "/api/monitor/stop", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if !mon.paused {
		t.Error("stop must pause the monitor")
	}
	if !strings.Contains(rec.Body.String(), "monitoring_stopped") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	req = httptest.NewRequest("POST", "/api/monitor/start", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if mon.paused {
		t.Error("start must resume the monitor")
	}
}

func TestMessageTypes(t *testing.T) {
	st := posture.Status{Lines: []string{"Looking Center"}, Seq: 9, GeneratedAt: time.Now()}

	data, err := json.Marshal(statusMessage(st))
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}

	var base Message
	if err := json.Unmarshal(data, &base); err != nil {
		t.Fatalf("json.Unmarshal error: %v", err)
	}
	if base.Type != "status" {
		t.Errorf("type = %q, want %q", base.Type, "status")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{}
	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("message %d rejected under the limit", i)
		}
	}
	if rl.allow() {
		t.Error("message over the limit must be rejected")
	}
}
