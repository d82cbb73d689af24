package kb

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

var (
	// ErrCategoryNotFound is returned when a category has no records.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrRecordNotFound is returned when a record ID is unknown in a category.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned when adding a record whose ID is taken.
	ErrRecordExists = errors.New("record already exists")
	// ErrEmptyRecordID is returned for records without an ID or category.
	ErrEmptyRecordID = errors.New("record ID and category must be set")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventRecordAdded EventType = iota
	EventSelectionChanged
)

// Event is emitted to subscribers when the catalog or selection changes.
type Event struct {
	Type     EventType
	Category string
	RecordID string
}

// KnowledgeBase is an in-memory, thread-safe component catalog together
// with the current per-category selection.
type KnowledgeBase struct {
	mu sync.RWMutex

	schemaVersion string
	categories    []string
	records       map[string][]model.ComponentRecord
	selection     model.Selection

	subs    map[int]func(Event)
	nextSub int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		records:   make(map[string][]model.ComponentRecord),
		selection: make(model.Selection),
		subs:      make(map[int]func(Event)),
	}
}

// SchemaVersion returns the schema version of the last loaded catalog.
func (kb *KnowledgeBase) SchemaVersion() string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.schemaVersion
}

// AddRecord appends a record to its category. IDs are unique per category.
func (kb *KnowledgeBase) AddRecord(rec model.ComponentRecord) error {
	if rec.ID == "" || rec.Category == "" {
		return fmt.Errorf("%w (category=%q id=%q)", ErrEmptyRecordID, rec.Category, rec.ID)
	}

	kb.mu.Lock()
	existing, known := kb.records[rec.Category]
	for _, r := range existing {
		if r.ID == rec.ID {
			kb.mu.Unlock()
			return fmt.Errorf("%w: %s/%s", ErrRecordExists, rec.Category, rec.ID)
		}
	}
	if !known {
		kb.categories = append(kb.categories, rec.Category)
	}
	kb.records[rec.Category] = append(existing, rec)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventRecordAdded, Category: rec.Category, RecordID: rec.ID})
	return nil
}

// Record returns one record by category and ID.
func (kb *KnowledgeBase) Record(category, id string) (model.ComponentRecord, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	records, ok := kb.records[category]
	if !ok {
		return model.ComponentRecord{}, fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return model.ComponentRecord{}, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, category, id)
}

// Records returns a copy of the records of a category in catalog order.
func (kb *KnowledgeBase) Records(category string) []model.ComponentRecord {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return slices.Clone(kb.records[category])
}

// Categories returns the category names in the order they were first seen.
func (kb *KnowledgeBase) Categories() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return slices.Clone(kb.categories)
}

// Select chooses the record used for a category. An empty id clears the
// explicit choice so the first record is used again.
func (kb *KnowledgeBase) Select(category, id string) error {
	kb.mu.Lock()
	records, ok := kb.records[category]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, category)
	}
	if id == "" {
		delete(kb.selection, category)
	} else {
		if !slices.ContainsFunc(records, func(r model.ComponentRecord) bool { return r.ID == id }) {
			kb.mu.Unlock()
			return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, category, id)
		}
		kb.selection[category] = id
	}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventSelectionChanged, Category: category, RecordID: id})
	return nil
}

// Selected returns the record currently chosen for a category.
func (kb *KnowledgeBase) Selected(category string) (model.ComponentRecord, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return model.Catalog(kb.records).Selected(category, kb.selection)
}

// Snapshot returns a copy of the catalog and selection that can be read
// without holding the KB lock. Records themselves are immutable.
func (kb *KnowledgeBase) Snapshot() (model.Catalog, model.Selection) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	cat := make(model.Catalog, len(kb.records))
	for k, v := range kb.records {
		cat[k] = slices.Clone(v)
	}
	return cat, maps.Clone(kb.selection)
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	ids := slices.Sorted(maps.Keys(kb.subs))
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, kb.subs[id])
	}
	return out
}

// notify runs outside the lock so callbacks may call back into the KB.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
