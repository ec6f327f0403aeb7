package jobs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

type fakeInspector struct {
	info  *asynq.QueueInfo
	err   error
	asked string
}

func (f *fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	f.asked = queue
	return f.info, f.err
}

type fixedClock time.Time

func (c fixedClock) LastSync() time.Time { return time.Time(c) }

func serveHealth(h *Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rr
}

func TestHealthWithoutDependencies(t *testing.T) {
	rr := serveHealth(NewHandler(nil, nil, "", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"failed":0}`, rr.Body.String())
}

func TestHealthReportsQueueAndLastSync(t *testing.T) {
	last := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	inspector := &fakeInspector{info: &asynq.QueueInfo{Queue: "leads:web-1", Pending: 2, Active: 1, Scheduled: 1, Retry: 3, Archived: 4}}
	h := NewHandler(inspector, fixedClock(last), SyncQueue("web-1"), nil)

	rr := serveHealth(h)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "leads:web-1", inspector.asked)
	assert.JSONEq(t, `{"queue":"leads:web-1","pending":2,"active":1,"scheduled":1,"retry":3,"failed":4,"lastSync":"2026-03-04T10:30:00Z"}`, rr.Body.String())
}

func TestHealthBrokerDown(t *testing.T) {
	rr := serveHealth(NewHandler(&fakeInspector{err: errors.New("dial tcp: refused")}, nil, "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
