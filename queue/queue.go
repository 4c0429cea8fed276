// Package queue owns the in-memory download queue. The Store is the single
// source of truth for item state; every read and write goes through one
// mutex-guarded operation and items only ever leave the store as copies.
package queue

import (
	"errors"
	"sync"
)

// State represents the lifecycle state of a queue item.
type State string

const (
	StateWaiting  State = "WAITING"
	StateWorking  State = "WORKING"
	StateComplete State = "COMPLETE"
	StateFailed   State = "FAILED"
)

// Clear modes accepted by Store.Clear.
const (
	ClearComplete   = "complete"
	ClearFailed     = "failed"
	ClearAll        = "all"
	ClearNonWorking = "non_working"
)

var (
	ErrNotFound         = errors.New("queue item not found")
	ErrDuplicateID      = errors.New("queue already contains this item")
	ErrUnknownClearMode = errors.New("unknown clear mode")
)

// Item is one user-requested download.
type Item struct {
	ID           string   `json:"id"`
	SourceURL    string   `json:"source_url"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Duration     *int64   `json:"duration,omitempty"` // whole seconds
	State        State    `json:"state"`
	Progress     *float64 `json:"progress,omitempty"` // percent, [0,100]
	Error        string   `json:"error,omitempty"`
}

// Patch holds the user-editable fields for UpdateFields. Nil means "leave
// unchanged"; callers are expected to pass sanitized values.
type Patch struct {
	Title  *string
	Artist *string
}

// Store is a thread-safe ordered collection of queue items.
type Store struct {
	mu    sync.Mutex
	items map[string]*Item
	order []string
}

// NewStore initializes and returns an empty Store.
func NewStore() *Store {
	return &Store{
		items: make(map[string]*Item),
	}
}

// List returns a snapshot copy of all items in insertion order.
func (s *Store) List() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.items[id])
	}
	return out
}

// Insert appends a new item. It fails with ErrDuplicateID when an item with
// the same id is already queued; the queue is left unchanged in that case.
func (s *Store) Insert(item Item) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return Item{}, ErrDuplicateID
	}
	stored := item
	s.items[item.ID] = &stored
	s.order = append(s.order, item.ID)
	return stored, nil
}

// Get returns a copy of the item with the given id.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return Item{}, false
	}
	return *item, true
}

// UpdateFields applies the non-nil, non-empty fields of patch to the item.
func (s *Store) UpdateFields(id string, patch Patch) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return Item{}, ErrNotFound
	}
	if patch.Title != nil && *patch.Title != "" {
		item.Title = *patch.Title
	}
	if patch.Artist != nil && *patch.Artist != "" {
		item.Artist = *patch.Artist
	}
	return *item, nil
}

// Remove deletes the item with the given id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ErrNotFound
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes items matching the mode's predicate and returns a snapshot
// of what remains. Note that "all" and "non_working" are intentionally the
// same predicate: both retain only WORKING items.
func (s *Store) Clear(mode string) ([]Item, error) {
	var keep func(*Item) bool
	switch mode {
	case ClearComplete:
		keep = func(item *Item) bool { return item.State != StateComplete }
	case ClearFailed:
		keep = func(item *Item) bool { return item.State != StateFailed }
	case ClearAll:
		keep = func(item *Item) bool { return item.State == StateWorking }
	case ClearNonWorking:
		keep = func(item *Item) bool { return item.State == StateWorking }
	default:
		return nil, ErrUnknownClearMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		item := s.items[id]
		if keep(item) {
			kept = append(kept, id)
			out = append(out, *item)
		} else {
			delete(s.items, id)
		}
	}
	s.order = kept
	return out, nil
}

// Transition moves the item to a new state, recording or clearing its error
// and recomputing progress: COMPLETE pins 100, WORKING keeps the current
// value (or starts at 0), every other state drops it. A missing id is a
// no-op, not an error: a worker racing a delete must not resurrect the item.
func (s *Store) Transition(id string, newState State, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return
	}

	item.State = newState
	switch newState {
	case StateComplete:
		full := 100.0
		item.Progress = &full
	case StateWorking:
		if item.Progress == nil {
			zero := 0.0
			item.Progress = &zero
		}
	default:
		item.Progress = nil
	}
	if newState == StateFailed {
		item.Error = errMsg
	} else {
		item.Error = ""
	}
}

// SetProgress records a progress percentage for the item, clamped to
// [0,100]. A missing id is a no-op.
func (s *Store) SetProgress(id string, percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[id]
	if !exists {
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	item.Progress = &percent
}

// EligibleIDs returns, in insertion order, the ids of every item that
// qualifies for a download sweep: WAITING, COMPLETE, or FAILED. WORKING
// items are never double-started.
func (s *Store) EligibleIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, id := range s.order {
		switch s.items[id].State {
		case StateWaiting, StateComplete, StateFailed:
			ids = append(ids, id)
		}
	}
	return ids
}
