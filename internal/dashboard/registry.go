package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMountGrace is how long a view may wait for its page to connect before it is dropped.
const DefaultMountGrace = time.Minute

// Registry tracks the views of the open dashboard pages.
type Registry struct {
	fetcher Fetcher
	opts    Options

	mu      sync.Mutex
	views   map[string]*View
	created map[string]time.Time

	// viewLogger is handed to the views, which add their own module attribute.
	viewLogger *slog.Logger
	logger     *slog.Logger
}

// NewRegistry creates a registry building views with the given fetcher and options.
func NewRegistry(fetcher Fetcher, opts Options, logger *slog.Logger) *Registry {
	return &Registry{
		fetcher:    fetcher,
		opts:       opts,
		views:      make(map[string]*View),
		created:    make(map[string]time.Time),
		viewLogger: logger,
		logger:     logger.With(slog.String("module", "registry")),
	}
}

// SetOnChange sets the change callback of views created from now on.
func (r *Registry) SetOnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.OnChange = fn
}

// Create builds and registers a new unmounted view.
func (r *Registry) Create() *View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := NewView(uuid.New().String(), r.fetcher, r.opts, r.viewLogger)
	r.views[v.ID()] = v
	r.created[v.ID()] = time.Now()
	return v
}

// Get returns the view with the given id.
func (r *Registry) Get(id string) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	return v, ok
}

// Remove unmounts and forgets the view with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	delete(r.created, id)
	r.mu.Unlock()

	if ok {
		v.Close()
	}
}

// Len returns the number of registered views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep drops views that were created more than grace ago and never mounted, returning how many were
// dropped.
func (r *Registry) Sweep(grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, v := range r.views {
		if v.Mounted() || time.Since(r.created[id]) < grace {
			continue
		}
		delete(r.views, id)
		delete(r.created, id)
		dropped++
	}
	return dropped
}

// Run sweeps unmounted views every grace period until ctx is done, then unmounts every view left.
func (r *Registry) Run(ctx context.Context, grace time.Duration) {
	if grace <= 0 {
		grace = DefaultMountGrace
	}
	ticker := time.NewTicker(grace)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(grace); n > 0 {
				r.logger.Debug("Dropped abandoned views", slog.Int("count", n))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	views := make([]*View, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	r.views = make(map[string]*View)
	r.created = make(map[string]time.Time)
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
