package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/terrastream/internal/chunk"
	"github.com/udisondev/terrastream/internal/world"
)

type fakeSource struct {
	mu         sync.Mutex
	subs       map[int]func(world.Event)
	next       int
	subscribed chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[int]func(world.Event)), subscribed: make(chan struct{}, 8)}
}

func (s *fakeSource) Subscribe(fn func(world.Event)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	s.subscribed <- struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *fakeSource) publish(e world.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fn := range s.subs {
		fn(e)
	}
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/feed"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn
}

func TestServer_StreamsEvents(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	feed := NewServer(source, 0)
	srv := httptest.NewServer(feed.Handler())
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	defer conn.Close()

	select {
	case <-source.subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not subscribe")
	}

	source.publish(world.Event{Type: world.EventVisibility, Coord: chunk.Coord{X: 2, Y: -1}, Visible: true, Tick: 7})
	source.publish(world.Event{Type: world.EventDisposed, Coord: chunk.Coord{X: 3}, Tick: 8})

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first map[string]any
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, map[string]any{"type": "visibility", "x": 2.0, "y": -1.0, "visible": true, "tick": 7.0}, first)

	var second Message
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, Message{Type: world.EventDisposed, X: 3, Tick: 8}, second)

	assert.Equal(t, 1, feed.Clients())
	assert.Eventually(t, func() bool { return feed.Sent() == 2 }, time.Second, 5*time.Millisecond)
}

func TestServer_UnsubscribesOnDisconnect(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	feed := NewServer(source, 4)
	srv := httptest.NewServer(feed.Handler())
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	<-source.subscribed
	require.Equal(t, 1, source.count())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return source.count() == 0 && feed.Clients() == 0
	}, 5*time.Second, 5*time.Millisecond)
}

func TestServer_DropsWhenClientLags(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	feed := NewServer(source, 1)
	srv := httptest.NewServer(feed.Handler())
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	defer conn.Close()
	<-source.subscribed

	// Publishing must never block the caller, however far the client lags.
	done := make(chan struct{})
	go func() {
		for i := range 10_000 {
			source.publish(world.Event{Type: world.EventCreated, Tick: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked")
	}
	assert.Positive(t, feed.Dropped())
}

func TestServer_RejectsNonGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(newFakeSource(), 0).Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/feed", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
