package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cryptofundraises/tracker/internal/api/handlers"
	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/internal/domain/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockEventBus for testing
type MockEventBus struct {
	mu           sync.RWMutex
	subscribers  map[string][]chan *entities.FundraiseEvent
	subscribeErr error
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{subscribers: make(map[string][]chan *entities.FundraiseEvent)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.FundraiseEvent) error {
	m.mu.RLock()
	channels := append([]chan *entities.FundraiseEvent(nil), m.subscribers[channel]...)
	m.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.FundraiseEvent, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.FundraiseEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	subs := m.subscribers
	m.subscribers = make(map[string][]chan *entities.FundraiseEvent)
	m.mu.Unlock()
	for _, channels := range subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	return nil
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[channel])
}

// openStream runs the handler until cancel is called and returns the recorder
// once the handler has exited.
func openStream(t *testing.T, handler *handlers.StreamHandler, bus *MockEventBus, target string, publish func()) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamFundraises(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return bus.SubscriberCount(providers.EventChannelFundraiseUpdates) > 0
	}, time.Second, 10*time.Millisecond)

	if publish != nil {
		publish()
	}
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}
	return w
}

func publishBoth(bus *MockEventBus) func() {
	return func() {
		record := &entities.Fundraise{ID: "f-1", Slug: "acme-2024-03"}
		_ = bus.Publish(context.Background(), providers.EventChannelFundraiseUpdates,
			entities.NewFundraiseEvent(record, entities.FundraiseEventTypeCreated, nil))
		_ = bus.Publish(context.Background(), providers.EventChannelFundraiseUpdates,
			entities.NewFundraiseEvent(record, entities.FundraiseEventTypeUpdated, map[string]interface{}{"ai_processed": true}))
	}
}

func TestStreamHandler_StreamsEvents(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewStreamHandler(bus, time.Hour)

	w := openStream(t, handler, bus, "/api/stream/fundraises", publishBoth(bus))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: connected\n"))
	assert.Contains(t, body, "event: fundraise.created\n")
	assert.Contains(t, body, "event: fundraise.updated\n")
	assert.Contains(t, body, `"slug":"acme-2024-03"`)
	assert.Equal(t, 0, handler.ClientCount())
}

func TestStreamHandler_FiltersByType(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewStreamHandler(bus, time.Hour)

	w := openStream(t, handler, bus, "/api/stream/fundraises?type=created", publishBoth(bus))

	body := w.Body.String()
	assert.Contains(t, body, "event: fundraise.created\n")
	assert.NotContains(t, body, "event: fundraise.updated\n")
}

func TestStreamHandler_Heartbeat(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewStreamHandler(bus, 20*time.Millisecond)

	w := openStream(t, handler, bus, "/api/stream/fundraises", nil)

	assert.Contains(t, w.Body.String(), "event: heartbeat\n")
}

func TestStreamHandler_InvalidType(t *testing.T) {
	handler := handlers.NewStreamHandler(NewMockEventBus(), 0)

	w := httptest.NewRecorder()
	handler.StreamFundraises(w, httptest.NewRequest(http.MethodGet, "/api/stream/fundraises?type=deleted", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamHandler_SubscribeError(t *testing.T) {
	bus := NewMockEventBus()
	bus.subscribeErr = errors.New("redis down")
	handler := handlers.NewStreamHandler(bus, 0)

	w := httptest.NewRecorder()
	handler.StreamFundraises(w, httptest.NewRequest(http.MethodGet, "/api/stream/fundraises", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
