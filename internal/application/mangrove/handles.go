package mangrove

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zjrosen/mangrove/internal/log"
)

var (
	ErrInvalidHandle = errors.New("invalid registry handle")
	ErrUnknownHandle = errors.New("unknown registry handle")
)

// HandleID addresses one Service inside Handles.
type HandleID string

// NewHandleID generates a random handle ID.
func NewHandleID() HandleID {
	return HandleID(uuid.New().String())
}

func (id HandleID) String() string {
	return string(id)
}

// IsValid reports whether id is a well-formed UUID.
func (id HandleID) IsValid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// ParseHandleID validates s and returns it as a HandleID.
func ParseHandleID(s string) (HandleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidHandle, s, err)
	}
	return HandleID(s), nil
}

// Handles is a caller-owned set of open registries. Nothing is tracked
// process-wide: a registry lives until Close is called on its handle.
type Handles struct {
	mu       sync.RWMutex
	services map[HandleID]*Service
	order    []HandleID
	opts     []Option
}

// NewHandles creates an empty set. opts are applied to every opened Service.
func NewHandles(opts ...Option) *Handles {
	return &Handles{
		services: make(map[HandleID]*Service),
		opts:     opts,
	}
}

// Open creates a new empty registry and returns its handle.
func (h *Handles) Open() (HandleID, *Service) {
	id := NewHandleID()
	svc := NewService(h.opts...)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[id] = svc
	h.order = append(h.order, id)

	log.Debug(log.CatRegistry, "registry opened", "handle", id)
	return id, svc
}

// Get returns the registry behind id.
func (h *Handles) Get(id HandleID) (*Service, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandle, id)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	svc, ok := h.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, id)
	}
	return svc, nil
}

// Close disposes the registry behind id. Closing an unknown handle is an error.
func (h *Handles) Close(id HandleID) error {
	h.mu.Lock()
	svc, ok := h.services[id]
	if ok {
		delete(h.services, id)
		for i, other := range h.order {
			if other == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, id)
	}
	svc.Close()
	log.Debug(log.CatRegistry, "registry closed", "handle", id, "registry", svc)
	return nil
}

// CloseAll disposes every open registry.
func (h *Handles) CloseAll() {
	for _, id := range h.List() {
		_ = h.Close(id)
	}
}

// List returns open handles in the order they were opened.
func (h *Handles) List() []HandleID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HandleID, len(h.order))
	copy(out, h.order)
	return out
}

// Len returns the number of open registries.
func (h *Handles) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.services)
}
