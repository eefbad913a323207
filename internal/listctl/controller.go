// Package listctl manages an ordered collection of profile sub-records
// (education, experience, certificates) edited one at a time.
//
// Mode graph:
//
//	LIST ──add/edit──► EDITING(id) ──save ok / back──► LIST
//	                      │   ▲
//	                      └───┘ validation or save failure
package listctl

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"profile-forms/internal/apperr"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Mode string

const (
	ModeList    Mode = "list"
	ModeEditing Mode = "editing"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusError  Status = "error"
)

// Record is what the backing store returns: the server identifier plus fields.
type Record[T any] struct {
	ID     string
	Fields T
}

type Store[T any] interface {
	Create(ctx context.Context, fields T) (Record[T], error)
	Update(ctx context.Context, id string, fields T) (Record[T], error)
	List(ctx context.Context) ([]Record[T], error)
}

type Entry[T any] struct {
	ID        string `json:"id"`
	Fields    T      `json:"fields"`
	Status    Status `json:"status"`
	Persisted bool   `json:"persisted"`
}

type State[T any] struct {
	Mode     Mode               `json:"mode"`
	ActiveID string             `json:"active_id,omitempty"`
	Active   *Entry[T]          `json:"active,omitempty"`
	Errors   apperr.FieldErrors `json:"errors,omitempty"`
	Err      error              `json:"-"`
}

type Options[T any] struct {
	// Validate returns the per-field errors of fields; empty means savable.
	Validate func(T) apperr.FieldErrors
	// Prepare normalizes fields right before validation and save.
	Prepare func(T) T
	// Populated reports whether any required field carries a value. Blank
	// drafts are discarded on Back. Defaults to "not the zero value".
	Populated func(T) bool
	NewID     func() string
	Logger    zerolog.Logger
}

type Controller[T any] struct {
	mu    sync.Mutex
	store Store[T]
	opts  Options[T]

	entries []Entry[T]
	mode    Mode
	active  *Entry[T]
	gen     uint64
	errs    apperr.FieldErrors
	err     error

	// stash keeps an unsaved new draft the user navigated away from.
	stash   *Entry[T]
	removed map[string]struct{}
	closed  bool
}

func New[T any](store Store[T], opts Options[T]) *Controller[T] {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Populated == nil {
		opts.Populated = func(v T) bool { return !reflect.ValueOf(&v).Elem().IsZero() }
	}
	return &Controller[T]{
		store:   store,
		opts:    opts,
		mode:    ModeList,
		removed: make(map[string]struct{}),
	}
}

// Load replaces the collection with the store's records.
func (c *Controller[T]) Load(ctx context.Context) error {
	records, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperr.ErrClosed
	}
	if err != nil {
		c.err = err
		return fmt.Errorf("load entries: %w", err)
	}

	entries := make([]Entry[T], 0, len(records))
	for _, r := range records {
		entries = append(entries, Entry[T]{ID: r.ID, Fields: r.Fields, Status: StatusSaved, Persisted: true})
	}
	c.entries = entries
	// The loaded list is authoritative; tombstones of earlier removals
	// must not swallow later saves of the same ids.
	c.removed = make(map[string]struct{})
	c.err = nil
	return nil
}

func (c *Controller[T]) Entries() []Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry[T], len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State[T]{Mode: c.mode, Err: c.err}
	if c.active != nil {
		a := *c.active
		st.Active = &a
		st.ActiveID = a.ID
	}
	if len(c.errs) > 0 {
		st.Errors = make(apperr.FieldErrors, len(c.errs))
		for k, v := range c.errs {
			st.Errors[k] = v
		}
	}
	return st
}

// Validate runs the configured rules against fields.
func (c *Controller[T]) Validate(fields T) apperr.FieldErrors {
	if c.opts.Prepare != nil {
		fields = c.opts.Prepare(fields)
	}
	return c.rules(fields)
}

func (c *Controller[T]) rules(fields T) apperr.FieldErrors {
	if c.opts.Validate == nil {
		return apperr.FieldErrors{}
	}
	errs := c.opts.Validate(fields)
	if errs == nil {
		return apperr.FieldErrors{}
	}
	return errs
}

// Add opens a fresh draft, or resumes the draft stashed by a previous Back.
func (c *Controller[T]) Add() (Entry[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireListLocked(); err != nil {
		return Entry[T]{}, err
	}

	if c.stash != nil {
		c.activateLocked(*c.stash)
		c.stash = nil
	} else {
		c.activateLocked(c.blankLocked())
	}
	return *c.active, nil
}

// Edit opens a copy of an existing entry; the list keeps the original until
// the copy is saved.
func (c *Controller[T]) Edit(id string) (Entry[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireListLocked(); err != nil {
		return Entry[T]{}, err
	}

	idx := c.indexLocked(id)
	if idx < 0 {
		return Entry[T]{}, fmt.Errorf("%w: entry %s", apperr.ErrNotFound, id)
	}
	e := c.entries[idx]
	e.Status = StatusDraft
	c.activateLocked(e)
	return *c.active, nil
}

// SetFields replaces the active draft's fields.
func (c *Controller[T]) SetFields(fields T) (Entry[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Entry[T]{}, apperr.ErrClosed
	}
	if c.mode != ModeEditing || c.active == nil {
		return Entry[T]{}, apperr.ErrNotEditing
	}
	if c.active.Status == StatusSaving {
		return Entry[T]{}, apperr.ErrSaveInProgress
	}
	c.active.Fields = fields
	if c.active.Status == StatusError {
		c.active.Status = StatusDraft
	}
	return *c.active, nil
}

// Back returns to list mode without saving. A new draft with populated
// required fields is stashed for the next Add; a blank one is dropped. Back
// is refused while the active entry is saving.
func (c *Controller[T]) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperr.ErrClosed
	}
	if c.mode != ModeEditing || c.active == nil {
		return apperr.ErrNotEditing
	}

	a := *c.active
	// Leaving mid-save would orphan the draft if the save then fails.
	if a.Status == StatusSaving {
		return apperr.ErrSaveInProgress
	}
	if !a.Persisted && c.opts.Populated(a.Fields) {
		a.Status = StatusDraft
		c.stash = &a
	}
	c.toListLocked()
	return nil
}

// Save validates the active draft and persists it. Validation failures never
// reach the store; store failures keep the draft in edit mode.
func (c *Controller[T]) Save(ctx context.Context) (Entry[T], error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Entry[T]{}, apperr.ErrClosed
	}
	if c.mode != ModeEditing || c.active == nil {
		c.mu.Unlock()
		return Entry[T]{}, apperr.ErrNotEditing
	}
	if c.active.Status == StatusSaving {
		c.mu.Unlock()
		return Entry[T]{}, apperr.ErrSaveInProgress
	}

	if c.opts.Prepare != nil {
		c.active.Fields = c.opts.Prepare(c.active.Fields)
	}
	if errs := c.rules(c.active.Fields); len(errs) > 0 {
		c.errs = errs
		c.mu.Unlock()
		return Entry[T]{}, apperr.NewValidationError(errs)
	}

	c.errs = nil
	c.err = nil
	c.active.Status = StatusSaving
	draft := *c.active
	gen := c.gen
	c.mu.Unlock()

	var (
		rec Record[T]
		err error
	)
	if draft.Persisted {
		rec, err = c.store.Update(ctx, draft.ID, draft.Fields)
		if err == nil && rec.ID == "" {
			rec.ID = draft.ID
		}
	} else {
		rec, err = c.store.Create(ctx, draft.Fields)
		if err == nil && rec.ID == "" {
			err = errors.New("store returned no identifier")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Entry[T]{}, apperr.ErrClosed
	}

	current := c.gen == gen && c.active != nil && c.active.ID == draft.ID
	if err != nil {
		c.opts.Logger.Warn().Err(err).Str("entry_id", draft.ID).Msg("save failed")
		delete(c.removed, draft.ID)
		if current {
			c.active.Status = StatusError
			c.err = err
		}
		return Entry[T]{}, fmt.Errorf("save entry: %w", err)
	}

	saved := Entry[T]{ID: rec.ID, Fields: rec.Fields, Status: StatusSaved, Persisted: true}
	c.mergeLocked(draft, saved)
	if current {
		c.toListLocked()
	}
	return saved, nil
}

// Reorder moves an entry in the displayed order. Local only.
func (c *Controller[T]) Reorder(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperr.ErrClosed
	}
	next, err := Reorder(c.entries, from, to)
	if err != nil {
		return err
	}
	c.entries = next
	return nil
}

// Remove drops an entry from the local collection. When it was the active
// entry, the next remaining entry (or a fresh draft) becomes active so the
// controller never points at a missing id.
func (c *Controller[T]) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperr.ErrClosed
	}

	wasActive := c.mode == ModeEditing && c.active != nil && c.active.ID == id
	idx := c.indexLocked(id)
	if idx < 0 && !wasActive {
		if c.stash != nil && c.stash.ID == id {
			c.stash = nil
			return nil
		}
		return fmt.Errorf("%w: entry %s", apperr.ErrNotFound, id)
	}

	if wasActive && c.active.Status == StatusSaving {
		c.removed[id] = struct{}{}
	}
	if idx >= 0 {
		c.entries = append(c.entries[:idx:idx], c.entries[idx+1:]...)
	}

	if !wasActive {
		return nil
	}
	if len(c.entries) == 0 {
		c.activateLocked(c.blankLocked())
		return nil
	}
	next := idx
	if next < 0 {
		next = 0
	}
	if next >= len(c.entries) {
		next = len(c.entries) - 1
	}
	e := c.entries[next]
	e.Status = StatusDraft
	c.activateLocked(e)
	return nil
}

// Close disposes the controller; in-flight saves resolving later are ignored.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller[T]) requireListLocked() error {
	if c.closed {
		return apperr.ErrClosed
	}
	if c.mode != ModeList {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidState, c.mode)
	}
	return nil
}

func (c *Controller[T]) blankLocked() Entry[T] {
	var zero T
	return Entry[T]{ID: c.opts.NewID(), Fields: zero, Status: StatusDraft}
}

func (c *Controller[T]) activateLocked(e Entry[T]) {
	c.gen++
	c.mode = ModeEditing
	c.active = &e
	c.errs = nil
	c.err = nil
}

func (c *Controller[T]) toListLocked() {
	c.gen++
	c.mode = ModeList
	c.active = nil
	c.errs = nil
	c.err = nil
}

func (c *Controller[T]) indexLocked(id string) int {
	for i := range c.entries {
		if c.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// mergeLocked folds a save result into the collection. Updates replace in
// place; creates are prepended and any row under the old client id is dropped.
func (c *Controller[T]) mergeLocked(draft, saved Entry[T]) {
	if c.stash != nil && c.stash.ID == draft.ID {
		c.stash = nil
	}

	if _, gone := c.removed[draft.ID]; gone {
		delete(c.removed, draft.ID)
		return
	}

	if draft.Persisted {
		if idx := c.indexLocked(draft.ID); idx >= 0 {
			c.entries[idx] = saved
		}
		return
	}

	kept := make([]Entry[T], 0, len(c.entries)+1)
	kept = append(kept, saved)
	for _, e := range c.entries {
		if e.ID == draft.ID || e.ID == saved.ID {
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
}
