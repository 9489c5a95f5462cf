package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

type ReloaderConfig struct {
	Path      string
	Dimension int
	Prefault  bool
	Options   Options
	Debounce  time.Duration
	Logger    *slog.Logger
}

// Reloader serves a saved index file and swaps in a freshly loaded Index
// whenever a new file is renamed onto its path. In-place writes are ignored:
// the old file is mapped and a half-written one must never be loaded. Writers
// save to a staging path, rename the id map across first when there is one,
// then rename the index. A reload that fails keeps the old index.
type Reloader struct {
	cfg       ReloaderConfig
	current   atomic.Pointer[Index]
	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	reloads   atomic.Int64
}

func NewReloader(cfg ReloaderConfig) (*Reloader, error) {
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Serve.Debounce
	}
	cfg.Path = filepath.Clean(cfg.Path)

	r := &Reloader{cfg: cfg}

	idx, err := r.open()
	if err != nil {
		return nil, err
	}
	r.current.Store(idx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// watch the directory: writers usually replace the file by rename
	if err := watcher.Add(filepath.Dir(cfg.Path)); err != nil {
		_ = watcher.Close()
		_ = idx.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(cfg.Path), err)
	}
	r.watcher = watcher

	return r, nil
}

func (r *Reloader) open() (*Index, error) {
	idx, err := NewIndex(r.cfg.Dimension, r.cfg.Options)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(r.cfg.Path, r.cfg.Prefault); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("load index: %w", err)
	}
	return idx, nil
}

// Current returns the index being served. It may be closed by a later reload,
// so prefer Query for one-off lookups.
func (r *Reloader) Current() *Index {
	return r.current.Load()
}

// Reloads reports how many successful reloads happened.
func (r *Reloader) Reloads() int64 {
	return r.reloads.Load()
}

// Query runs QueryByVector against the current index, retrying once if a
// reload closed it underneath us.
func (r *Reloader) Query(v []float32, n, searchK int) ([]Neighbor, error) {
	for attempt := 0; ; attempt++ {
		idx := r.Current()
		if idx == nil {
			return nil, ErrClosed
		}
		res, err := idx.QueryByVector(v, n, searchK)
		if errors.Is(err, ErrClosed) && attempt == 0 {
			continue
		}
		return res, err
	}
}

// Reload loads the file again and swaps it in.
func (r *Reloader) Reload() error {
	idx, err := r.open()
	if err != nil {
		r.cfg.Logger.Warn("reload failed, keeping previous index", "path", r.cfg.Path, "error", err)
		return err
	}

	old := r.current.Swap(idx)
	if old != nil {
		_ = old.Close()
	}
	r.reloads.Add(1)

	items, _ := idx.ItemCount()
	r.cfg.Logger.Info("index reloaded", "path", r.cfg.Path, "items", items)
	return nil
}

// Run watches the index file until ctx is done or the reloader is closed.
func (r *Reloader) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if !r.relevant(event) {
				continue
			}
			r.cfg.Logger.Debug("index file changed", "path", event.Name, "op", event.Op.String())
			if !pending {
				timer.Reset(r.cfg.Debounce)
				pending = true
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.cfg.Logger.Error("watch error", "error", err)
		case <-timer.C:
			pending = false
			_ = r.Reload()
		}
	}
}

func (r *Reloader) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != r.cfg.Path {
		return false
	}
	return event.Op.Has(fsnotify.Create)
}

// Close stops watching and closes the served index.
func (r *Reloader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.watcher != nil {
			err = r.watcher.Close()
		}
		if idx := r.current.Swap(nil); idx != nil {
			if closeErr := idx.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	})
	return err
}
