package store

import (
	"context"
	"sync"
	"time"
)

// Mock implements Store for testing.
// All methods can be customized via function fields; by default
// records live in memory and Push/Fail drive subscriber callbacks
// synchronously from the test goroutine.
type Mock struct {
	// SubscribeFunc overrides Subscribe when set.
	SubscribeFunc func(ctx context.Context, q Query, onPush func([]Record), onError func(error)) (Subscription, error)

	// PublishFunc overrides Publish when set.
	PublishFunc func(ctx context.Context, path string, rec Record) error

	// RemoveFunc overrides Remove when set.
	RemoveFunc func(ctx context.Context, path, id string) error

	mu      sync.Mutex
	calls   []MockCall
	records map[string]map[string]Record
	subs    map[string][]*mockSubscription
	closed  bool
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Path   string
	ID     string
	Time   time.Time
}

// NewMock creates an empty in-memory store.
func NewMock() *Mock {
	return &Mock{
		records: make(map[string]map[string]Record),
		subs:    make(map[string][]*mockSubscription),
	}
}

// Subscribe attaches a subscriber to the path. The initial push
// delivers the current in-memory records for the path.
func (m *Mock) Subscribe(ctx context.Context, q Query, onPush func([]Record), onError func(error)) (Subscription, error) {
	m.recordCall("Subscribe", q.Path, "")
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, q, onPush, onError)
	}

	m.mu.Lock()
	sub := &mockSubscription{store: m, path: q.Path, onPush: onPush, onError: onError}
	m.subs[q.Path] = append(m.subs[q.Path], sub)
	initial := m.currentLocked(q.Path)
	m.mu.Unlock()

	onPush(initial)
	return sub, nil
}

// Publish stores the record and pushes the new record set to the
// path's subscribers.
func (m *Mock) Publish(ctx context.Context, path string, rec Record) error {
	m.recordCall("Publish", path, rec.ID)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, path, rec)
	}

	m.mu.Lock()
	if m.records[path] == nil {
		m.records[path] = make(map[string]Record)
	}
	m.records[path][rec.ID] = rec
	m.mu.Unlock()

	m.pushCurrent(path)
	return nil
}

// Remove deletes the record and pushes the new record set.
func (m *Mock) Remove(ctx context.Context, path, id string) error {
	m.recordCall("Remove", path, id)
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, path, id)
	}

	m.mu.Lock()
	delete(m.records[path], id)
	m.mu.Unlock()

	m.pushCurrent(path)
	return nil
}

// Close marks the store closed.
func (m *Mock) Close() error {
	m.recordCall("Close", "", "")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Push delivers an arbitrary record set to all subscribers of the
// path, bypassing stored state. Used to simulate raw feed pushes.
func (m *Mock) Push(path string, records []Record) {
	for _, sub := range m.subscribers(path) {
		sub.onPush(records)
	}
}

// Fail delivers a fatal subscription error to all subscribers of the
// path.
func (m *Mock) Fail(path string, err error) {
	for _, sub := range m.subscribers(path) {
		sub.onError(err)
	}
}

// SubscriberCount returns the number of live subscriptions on the path.
func (m *Mock) SubscriberCount(path string) int {
	return len(m.subscribers(path))
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

func (m *Mock) recordCall(method, path, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Path:   path,
		ID:     id,
		Time:   time.Now(),
	})
}

func (m *Mock) currentLocked(path string) []Record {
	records := make([]Record, 0, len(m.records[path]))
	for _, rec := range m.records[path] {
		records = append(records, rec)
	}
	return records
}

func (m *Mock) pushCurrent(path string) {
	m.mu.Lock()
	current := m.currentLocked(path)
	m.mu.Unlock()
	for _, sub := range m.subscribers(path) {
		sub.onPush(current)
	}
}

func (m *Mock) subscribers(path string) []*mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	live := make([]*mockSubscription, 0, len(m.subs[path]))
	for _, sub := range m.subs[path] {
		if !sub.closed {
			live = append(live, sub)
		}
	}
	return live
}

type mockSubscription struct {
	store   *Mock
	path    string
	onPush  func([]Record)
	onError func(error)
	closed  bool
}

func (s *mockSubscription) Close() {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.closed = true
}

// Verify Mock implements Store at compile time.
var _ Store = (*Mock)(nil)
