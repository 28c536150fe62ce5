package store

import (
	"context"
	"streamstate/pkg/utils/syncutils"

	"golang.org/x/sync/errgroup"
)

// Registry collects the state stores owned by one task so the runtime can
// drive their lifecycles together. Fan-out is concurrent; the first error
// wins, the rest still run to completion.
type Registry struct {
	mux    syncutils.Mutex
	stores []StateStore
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(s StateStore) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.stores = append(r.stores, s)
}

func (r *Registry) snapshot() []StateStore {
	r.mux.Lock()
	defer r.mux.Unlock()
	out := make([]StateStore, len(r.stores))
	copy(out, r.stores)
	return out
}

func (r *Registry) InitAll(ctx context.Context) error {
	bg, gctx := errgroup.WithContext(ctx)
	for _, s := range r.snapshot() {
		s := s
		bg.Go(func() error {
			return s.Init(gctx)
		})
	}
	return bg.Wait()
}

func (r *Registry) FlushAll(ctx context.Context) error {
	bg, gctx := errgroup.WithContext(ctx)
	for _, s := range r.snapshot() {
		s := s
		bg.Go(func() error {
			return s.Flush(gctx)
		})
	}
	return bg.Wait()
}

func (r *Registry) CloseAll() error {
	var bg errgroup.Group
	for _, s := range r.snapshot() {
		s := s
		bg.Go(s.Close)
	}
	return bg.Wait()
}
