package sessions

import (
	"context"
	"sync"
)

// RequestCache memoizes Validate per request. Every collaborator handling
// the same request (guard, page, API handler) shares one store round trip.
// Entries live until Release; nothing is cached across requests.
type RequestCache[U any] struct {
	validator Validator[U]

	mu      sync.Mutex
	entries map[string]*cacheEntry[U]
}

type cacheEntry[U any] struct {
	once      sync.Once
	sessionID string
	// seeded entries come from Store and answer for any presented id.
	seeded bool
	result Result[U]
	err    error
}

func NewRequestCache[U any](v Validator[U]) *RequestCache[U] {
	return &RequestCache[U]{validator: v, entries: make(map[string]*cacheEntry[U])}
}

// Validate returns the memoized result for requestID, computing it from
// sessionID on first use. Concurrent callers for the same request wait for
// the single computation. An entry computed for a different session id is
// replaced, never shared. requestID must be generated by the server.
func (c *RequestCache[U]) Validate(ctx context.Context, requestID, sessionID string) (Result[U], error) {
	c.mu.Lock()
	e, ok := c.entries[requestID]
	if !ok || (!e.seeded && e.sessionID != sessionID) {
		e = &cacheEntry[U]{sessionID: sessionID}
		c.entries[requestID] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.result, e.err = c.validator.Validate(ctx, sessionID)
	})
	return e.result, e.err
}

// Store seeds requestID with a result computed elsewhere, e.g. a session
// issued during sign-in.
func (c *RequestCache[U]) Store(requestID string, res Result[U]) {
	e := &cacheEntry[U]{result: res, seeded: true}
	e.once.Do(func() {})

	c.mu.Lock()
	c.entries[requestID] = e
	c.mu.Unlock()
}

// Release drops the entry for requestID. Call it when the request finishes.
func (c *RequestCache[U]) Release(requestID string) {
	c.mu.Lock()
	delete(c.entries, requestID)
	c.mu.Unlock()
}

// Len reports the number of live entries.
func (c *RequestCache[U]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
