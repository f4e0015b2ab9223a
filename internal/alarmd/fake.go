package alarmd

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// FakeClient is an in-memory Client for tests: it remembers every
// scheduled request until cancelled.
type FakeClient struct {
	mu    sync.Mutex
	byKey map[Cookie]Request
}

// NewFakeClient returns a ready-to-use FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{byKey: make(map[Cookie]Request)}
}

func (f *FakeClient) AddEvent(_ context.Context, req Request) (Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := Cookie(uuid.New().String())
	f.byKey[c] = req
	return c, nil
}

func (f *FakeClient) Query(_ context.Context, cookie Cookie) (Request, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.byKey[cookie]
	return req, ok, nil
}

func (f *FakeClient) Cancel(_ context.Context, cookie Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byKey, cookie)
	return nil
}

// Cookies returns every cookie currently scheduled, for test assertions.
func (f *FakeClient) Cookies() []Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Cookie, 0, len(f.byKey))
	for c := range f.byKey {
		out = append(out, c)
	}
	return out
}
