package session

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/astrikos/mapstream/internal/catalog"
	"github.com/astrikos/mapstream/internal/data"
	"github.com/astrikos/mapstream/internal/service"
)

type emitRecorder struct {
	mu     sync.Mutex
	events []string
	data   []interface{}
}

func (r *emitRecorder) emit(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.data = append(r.data, payload)
}

func (r *emitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestSession(t *testing.T, cat *catalog.Catalog, rec *emitRecorder) *Session {
	t.Helper()
	return New("test-session", cat, 10*time.Millisecond, time.Second, zap.NewNop(), rec.emit)
}

func TestSubscribeUnknownSource(t *testing.T) {
	cat := catalog.New(zap.NewNop())
	sess := newTestSession(t, cat, &emitRecorder{})
	defer sess.Close()

	err := sess.Subscribe("ghost")
	require.Error(t, err)
	var notFound *service.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSubscribeIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cat := catalog.New(zap.NewNop())
	cat.UpsertSource(&data.DataSource{ID: "traffic-1", Name: "Traffic", URL: server.URL})

	sess := newTestSession(t, cat, &emitRecorder{})
	defer sess.Close()

	require.NoError(t, sess.Subscribe("traffic-1"))
	require.NoError(t, sess.Subscribe("traffic-1"))
	assert.Equal(t, 1, sess.SubscriptionCount())
}

func TestSubscribeDeliversRealtimeData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"vehicles": 7}`))
	}))
	defer server.Close()

	cat := catalog.New(zap.NewNop())
	cat.UpsertSource(&data.DataSource{ID: "bus-1", Name: "Bus", URL: server.URL})

	rec := &emitRecorder{}
	sess := newTestSession(t, cat, rec)
	defer sess.Close()

	require.NoError(t, sess.Subscribe("bus-1"))

	require.Eventually(t, func() bool { return rec.count() > 0 }, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "realtime-data", rec.events[0])
	payload, ok := rec.data[0].(RealtimeData)
	require.True(t, ok)
	assert.Equal(t, "bus-1", payload.SourceID)
	assert.Equal(t, "Bus", payload.SourceName)
}

func TestPollerSnapshotSurvivesSourceEdit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cat := catalog.New(zap.NewNop())
	cat.UpsertSource(&data.DataSource{ID: "bus-1", Name: "Bus", URL: server.URL})

	rec := &emitRecorder{}
	sess := newTestSession(t, cat, rec)
	defer sess.Close()

	require.NoError(t, sess.Subscribe("bus-1"))

	// editing the source after subscribing must not change the running
	// poller's identity
	cat.UpsertSource(&data.DataSource{ID: "bus-1", Name: "Renamed", URL: "http://127.0.0.1:1/dead"})

	require.Eventually(t, func() bool { return rec.count() > 0 }, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	payload := rec.data[0].(RealtimeData)
	assert.Equal(t, "Bus", payload.SourceName)
}

func TestUnsubscribeIsSafeToRepeat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cat := catalog.New(zap.NewNop())
	cat.UpsertSource(&data.DataSource{ID: "traffic-1", Name: "Traffic", URL: server.URL})

	sess := newTestSession(t, cat, &emitRecorder{})
	defer sess.Close()

	sess.Unsubscribe("traffic-1") // not subscribed: no-op

	require.NoError(t, sess.Subscribe("traffic-1"))
	sess.Unsubscribe("traffic-1")
	sess.Unsubscribe("traffic-1")
	assert.Equal(t, 0, sess.SubscriptionCount())
}

func TestCloseStopsAllDeliveries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cat := catalog.New(zap.NewNop())
	for _, id := range []string{"traffic-1", "weather-1", "bus-1"} {
		cat.UpsertSource(&data.DataSource{ID: id, Name: id, URL: server.URL})
	}

	rec := &emitRecorder{}
	sess := newTestSession(t, cat, rec)

	for _, id := range []string{"traffic-1", "weather-1", "bus-1"} {
		require.NoError(t, sess.Subscribe(id))
	}
	assert.Equal(t, 3, sess.SubscriptionCount())

	sess.Close()
	sess.Close() // idempotent
	assert.Equal(t, 0, sess.SubscriptionCount())

	// allow in-flight cycles to drain, then verify silence
	time.Sleep(100 * time.Millisecond)
	settled := rec.count()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, settled, rec.count(), "realtime data emitted after Close")

	// a closed session accepts no new subscriptions
	require.NoError(t, sess.Subscribe("traffic-1"))
	assert.Equal(t, 0, sess.SubscriptionCount())
}

func TestSetActiveProject(t *testing.T) {
	cat := catalog.New(zap.NewNop())
	cat.UpsertProject(&data.Project{ID: "p1", Name: "Downtown"})

	sess := newTestSession(t, cat, &emitRecorder{})
	defer sess.Close()

	err := sess.SetActiveProject("ghost")
	var notFound *service.NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, sess.SetActiveProject("p1"))
	assert.Equal(t, "p1", sess.ActiveProject())

	sess.ClearActiveProject("other")
	assert.Equal(t, "p1", sess.ActiveProject())
	sess.ClearActiveProject("p1")
	assert.Equal(t, "", sess.ActiveProject())
}
