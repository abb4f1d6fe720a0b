package video

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/utils"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "video")

// Listener observes committed transitions. It runs while the registry is locked,
// so it must return quickly and must not dispatch.
type Listener func(event Event, snapshot Snapshot)

// Registry owns the batch state. Writes are serialised through Dispatch,
// reads load the current snapshot without locking.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]

	bus          *EventBus
	listeners    *xsync.Map[uint64, Listener]
	nextListener atomic.Uint64

	now   func() time.Time
	newID func() (string, error)
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		bus:       NewEventBus(cfg.EventBufferSize),
		listeners: xsync.NewMap[uint64, Listener](),
		now:       time.Now,
		newID:     utils.NewUUIDv4,
	}
	initial := emptySnapshot()
	r.current.Store(&initial)
	return r
}

// Snapshot returns the latest committed state.
func (r *Registry) Snapshot() Snapshot {
	return *r.current.Load()
}

func (r *Registry) Events() *EventBus {
	return r.bus
}

// Dispatch applies one action atomically and notifies observers when the state changed.
func (r *Registry) Dispatch(a Action) (Snapshot, error) {
	if a.At.IsZero() {
		a.At = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev := *r.current.Load()
	next, err := Reduce(prev, a)
	if err != nil {
		return prev, err
	} else if next.Version == prev.Version {
		return prev, nil
	}
	r.current.Store(&next)

	progress := a.Progress
	if item, ok := next.Items.Get(a.ID); ok {
		progress = item.ConversionProgress
	}
	event := r.bus.Publish(Event{
		Timestamp: a.At.UTC(),
		Version:   next.Version,
		Type:      a.Type,
		ItemID:    a.ID,
		Status:    next.Status,
		Progress:  progress,
		Message:   a.Err,
	})
	r.listeners.Range(func(_ uint64, l Listener) bool {
		l(event, next)
		return true
	})
	return next, nil
}

// AddFiles inserts files in order under fresh random ids.
func (r *Registry) AddFiles(files []File) ([]Item, error) {
	items := make([]Item, 0, len(files))
	for _, f := range files {
		id, err := r.newID()
		if err != nil {
			return nil, fmt.Errorf("generate video id: %w", err)
		}
		items = append(items, Item{
			ID:          id,
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        int64(len(f.Data)),
			PreviewURL:  "/api/videos/" + id + "/preview",
			Source:      f.Data,
		})
	}
	if len(items) == 0 {
		return items, nil
	}
	if _, err := r.Dispatch(Action{Type: ActionUpload, Items: items}); err != nil {
		return nil, err
	}
	logger.Infof("added %d videos", len(items))
	return items, nil
}

func (r *Registry) Get(id string) (Item, error) {
	item, ok := r.Snapshot().Items.Get(id)
	if !ok {
		return Item{}, &ItemNotFoundError{ID: id}
	}
	return item, nil
}

// Remove deletes a video. Videos being converted cannot be removed.
func (r *Registry) Remove(id string) error {
	_, err := r.Dispatch(Action{Type: ActionRemove, ID: id})
	return err
}

func (r *Registry) MarkTranscribed(id string) error {
	_, err := r.Dispatch(Action{Type: ActionMarkTranscribed, ID: id})
	return err
}

// StartTranscription marks the batch as being transcribed by an external worker.
func (r *Registry) StartTranscription() (Snapshot, error) {
	return r.Dispatch(Action{Type: ActionStartTranscription})
}

func (r *Registry) FinishTranscription() (Snapshot, error) {
	return r.Dispatch(Action{Type: ActionFinishTranscription})
}

// Subscribe registers l and returns a function removing it again.
func (r *Registry) Subscribe(l Listener) func() {
	id := r.nextListener.Add(1)
	r.listeners.Store(id, l)
	return func() {
		r.listeners.Delete(id)
	}
}
