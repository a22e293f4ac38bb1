package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wharfhook/wharfhook/internal/audit"
	"github.com/wharfhook/wharfhook/internal/logging"
	"github.com/wharfhook/wharfhook/internal/subscription"
)

type fakeSubs struct {
	subs map[int64]subscription.Subscription
}

func (f *fakeSubs) Get(ctx context.Context, id int64) (subscription.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubs) Create(ctx context.Context, targetURL, secret, eventType string) (subscription.Subscription, error) {
	sub := subscription.Subscription{ID: int64(len(f.subs) + 1), TargetURL: targetURL, Secret: secret, EventType: eventType}
	f.subs[sub.ID] = sub
	return sub, nil
}

func (f *fakeSubs) Update(ctx context.Context, id int64, targetURL, secret, eventType string) (subscription.Subscription, error) {
	sub, ok := f.subs[id]
	if !ok {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	if targetURL != "" {
		sub.TargetURL = targetURL
	}
	if secret != "" {
		sub.Secret = secret
	}
	if eventType != "" {
		sub.EventType = eventType
	}
	f.subs[id] = sub
	return sub, nil
}

func (f *fakeSubs) Delete(ctx context.Context, id int64) error {
	delete(f.subs, id)
	return nil
}

func (f *fakeSubs) Resolve(ctx context.Context, id int64) (subscription.Subscription, error) {
	return f.Get(ctx, id)
}

type fakeQueue struct {
	enqueued int
	lastSub  int64
	taskID   string
}

func (f *fakeQueue) Enqueue(ctx context.Context, subscriptionID int64, payload map[string]any, eventType string) (string, error) {
	f.enqueued++
	f.lastSub = subscriptionID
	return f.taskID, nil
}

type fakeAuditReader struct {
	byTask map[string]audit.Record
	recent []audit.Record
}

func (f *fakeAuditReader) LatestByTask(ctx context.Context, taskID string) (audit.Record, error) {
	rec, ok := f.byTask[taskID]
	if !ok {
		return audit.Record{}, audit.ErrNoRecords
	}
	return rec, nil
}

func (f *fakeAuditReader) RecentBySubscription(ctx context.Context, subscriptionID int64, limit int) ([]audit.Record, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestRouter(subs *fakeSubs, queue *fakeQueue, auditLog *fakeAuditReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc := NewService(subs, subs, queue, auditLog, logging.New("test"))
	svc.Register(router, nil)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngestEvent(t *testing.T) {
	const secret = "shhh"
	subs := &fakeSubs{subs: map[int64]subscription.Subscription{
		1: {ID: 1, TargetURL: "https://example.com/hook", Secret: secret},
		2: {ID: 2, TargetURL: "https://example.com/hook", Secret: secret, EventType: "order.created"},
		3: {ID: 3, TargetURL: "https://example.com/hook"},
	}}

	tests := []struct {
		name       string
		path       string
		envelope   map[string]any
		wantStatus int
		wantQueued bool
	}{
		{
			name:       "unknown subscription",
			path:       "/ingest/999",
			envelope:   map[string]any{"body": "hi", "signature": sign(secret, "hi")},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing signature",
			path:       "/ingest/1",
			envelope:   map[string]any{"body": "hi"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing body",
			path:       "/ingest/1",
			envelope:   map[string]any{"signature": sign(secret, "hi")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid signature",
			path:       "/ingest/1",
			envelope:   map[string]any{"body": "hi", "signature": sign("wrong", "hi")},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid signed event",
			path:       "/ingest/1",
			envelope:   map[string]any{"body": "hi", "signature": sign(secret, "hi")},
			wantStatus: http.StatusAccepted,
			wantQueued: true,
		},
		{
			name:       "event type mismatch",
			path:       "/ingest/2?event_type=order.deleted",
			envelope:   map[string]any{"body": "hi", "signature": sign(secret, "hi")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "event type match",
			path:       "/ingest/2?event_type=order.created",
			envelope:   map[string]any{"body": "hi", "signature": sign(secret, "hi")},
			wantStatus: http.StatusAccepted,
			wantQueued: true,
		},
		{
			name:       "no secret skips verification",
			path:       "/ingest/3",
			envelope:   map[string]any{"body": "hi"},
			wantStatus: http.StatusAccepted,
			wantQueued: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &fakeQueue{taskID: "task-1"}
			router := newTestRouter(subs, queue, &fakeAuditReader{})

			w := doJSON(router, http.MethodPost, tt.path, tt.envelope)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantQueued {
				require.Equal(t, 1, queue.enqueued, "event should have been enqueued")
				var resp map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "task-1", resp["task_id"])
			} else {
				assert.Zero(t, queue.enqueued, "rejected event must not be enqueued")
			}
		})
	}
}

func TestDeliveryStatus(t *testing.T) {
	status := 200
	auditLog := &fakeAuditReader{byTask: map[string]audit.Record{
		"task-1": {TaskID: "task-1", AttemptNumber: 3, Outcome: audit.OutcomeSuccess, StatusCode: &status},
	}}
	router := newTestRouter(&fakeSubs{subs: map[int64]subscription.Subscription{}}, &fakeQueue{}, auditLog)

	w := doJSON(router, http.MethodGet, "/status/task-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rec audit.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, 3, rec.AttemptNumber)
	assert.Equal(t, audit.OutcomeSuccess, rec.Outcome)

	w = doJSON(router, http.MethodGet, "/status/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeliveryHistory(t *testing.T) {
	auditLog := &fakeAuditReader{recent: []audit.Record{
		{TaskID: "t2", AttemptNumber: 1, Outcome: audit.OutcomeSuccess},
		{TaskID: "t1", AttemptNumber: 5, Outcome: audit.OutcomeFailure},
	}}
	router := newTestRouter(&fakeSubs{subs: map[int64]subscription.Subscription{}}, &fakeQueue{}, auditLog)

	w := doJSON(router, http.MethodGet, "/subscriptions/1/deliveries", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var records []audit.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 2)
	assert.Equal(t, "t2", records[0].TaskID)
}

func TestSubscriptionCRUD(t *testing.T) {
	subs := &fakeSubs{subs: map[int64]subscription.Subscription{}}
	router := newTestRouter(subs, &fakeQueue{}, &fakeAuditReader{})

	// create without target_url
	w := doJSON(router, http.MethodPost, "/subscriptions", map[string]string{"secret": "s"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// create
	w = doJSON(router, http.MethodPost, "/subscriptions", map[string]string{
		"target_url": "https://example.com/hook",
		"secret":     "s",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created subscription.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "https://example.com/hook", created.TargetURL)

	// get
	w = doJSON(router, http.MethodGet, "/subscriptions/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// update
	w = doJSON(router, http.MethodPut, "/subscriptions/1", map[string]string{"event_type": "order.created"})
	require.Equal(t, http.StatusOK, w.Code)

	var updated subscription.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "order.created", updated.EventType)
	assert.Equal(t, "https://example.com/hook", updated.TargetURL)

	// delete, then gone
	w = doJSON(router, http.MethodDelete, "/subscriptions/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/subscriptions/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// bad id
	w = doJSON(router, http.MethodGet, "/subscriptions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
