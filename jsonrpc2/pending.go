package jsonrpc2

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CompletionFunc receives the outcome of a pending call: either the raw
// result or an error.
type CompletionFunc func(result json.RawMessage, err error)

// DuplicateIDError is returned when registering an id that is already pending.
type DuplicateIDError struct {
	ID string
}

func (err DuplicateIDError) Error() string {
	return fmt.Sprintf("call id already pending: %s", err.ID)
}

type pendingCall struct {
	timestamp time.Time
	complete  CompletionFunc
}

type pendingItem struct {
	key       string
	timestamp time.Time
}

type pendingQueue []pendingItem

func (p pendingQueue) Len() int {
	return len(p)
}

func (p pendingQueue) Less(i, j int) bool {
	return p[i].timestamp.Before(p[j].timestamp)
}

func (p pendingQueue) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func pendingOldest(pending map[string]*pendingCall, num int) pendingQueue {
	if num > len(pending) {
		num = len(pending)
	}
	queue := make(pendingQueue, 0, len(pending))
	for key, p := range pending {
		queue = append(queue, pendingItem{
			key, p.timestamp,
		})
	}
	sort.Sort(queue)
	return queue[:num]
}

// Registry tracks outstanding outbound calls by correlation id. Every
// registered call is completed exactly once: by Resolve, Cancel, DrainAll or
// eviction. Completions run outside the registry lock, on the goroutine that
// triggered them. The zero value is ready to use.
type Registry struct {
	// Limit is the number of pending calls to hold before the oldest get
	// evicted. Zero means unbounded.
	Limit int
	// Discard is the number of oldest calls evicted when Limit is reached.
	Discard int

	mu      sync.Mutex
	pending map[string]*pendingCall
}

// Register records a pending call.
func (reg *Registry) Register(id json.RawMessage, onComplete CompletionFunc) error {
	key := idKey(id)
	reg.mu.Lock()
	if reg.pending == nil {
		reg.pending = map[string]*pendingCall{}
	}
	if _, ok := reg.pending[key]; ok {
		reg.mu.Unlock()
		return DuplicateIDError{key}
	}
	var evicted []*pendingCall
	if reg.Limit > 0 && len(reg.pending) >= reg.Limit && reg.Discard > 0 {
		evicted = reg.evictOldest(reg.Discard)
	}
	reg.pending[key] = &pendingCall{
		timestamp: time.Now(),
		complete:  onComplete,
	}
	reg.mu.Unlock()

	for _, p := range evicted {
		p.complete(nil, Errorf(ErrCodeEvicted, "pending call evicted: limit of %d reached", reg.Limit))
	}
	return nil
}

// evictOldest removes num oldest entries, must hold the reg.mu lock.
func (reg *Registry) evictOldest(num int) []*pendingCall {
	evicted := make([]*pendingCall, 0, num)
	for _, item := range pendingOldest(reg.pending, num) {
		evicted = append(evicted, reg.pending[item.key])
		delete(reg.pending, item.key)
	}
	return evicted
}

func (reg *Registry) take(id json.RawMessage) (*pendingCall, bool) {
	key := idKey(id)
	reg.mu.Lock()
	defer reg.mu.Unlock()
	p, ok := reg.pending[key]
	if ok {
		delete(reg.pending, key)
	}
	return p, ok
}

// Resolve removes the pending call and completes it with the result or err.
// It returns false if the id is not pending.
func (reg *Registry) Resolve(id json.RawMessage, result json.RawMessage, err error) bool {
	p, ok := reg.take(id)
	if !ok {
		return false
	}
	p.complete(result, err)
	return true
}

// Cancel completes the pending call with err and frees its slot.
func (reg *Registry) Cancel(id json.RawMessage, err error) bool {
	return reg.Resolve(id, nil, err)
}

// DrainAll completes every pending call with err and empties the registry.
// It returns the number of calls that were completed.
func (reg *Registry) DrainAll(err error) int {
	reg.mu.Lock()
	pending := reg.pending
	reg.pending = nil
	reg.mu.Unlock()

	for _, p := range pending {
		p.complete(nil, err)
	}
	return len(pending)
}

// Len returns the number of pending calls.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.pending)
}
