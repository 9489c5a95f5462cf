package internal

import (
	"fmt"
	"os"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Options tune an Index beyond its dimension.
type Options struct {
	// Jobs is the worker count used by Build; -1 uses every core.
	Jobs int
	// DirMode is used when creating parent directories of Save and RedirectToDisk targets.
	DirMode os.FileMode
	// Seed fixes the engine's random source. Zero keeps the engine default.
	Seed uint32
}

func DefaultOptions() Options {
	return Options{
		Jobs:    -1,
		DirMode: 0755,
	}
}

// Index is an angular ANN index over vectors of a fixed dimension. It owns one
// engine handle and enforces the empty → accumulating → built → persisted
// lifecycle (or empty → loaded) before anything reaches the engine.
type Index struct {
	mu        sync.RWMutex
	h         *handle
	dimension int
	state     State
	opts      Options
	// items is max id + 1, the slot count callers see.
	items int
	// inserted collects ids until Build.
	inserted *roaring.Bitmap
	// ids maps engine slots back to caller ids; nil while they are the same.
	ids      *roaring.Bitmap
	diskPath string
	// unwritten is set when a redirected Build grew its trees but could not
	// write diskPath. The next Build only retries the write.
	unwritten bool
	path      string
}

func NewIndex(dimension int, opts Options) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}
	if opts.DirMode == 0 {
		opts.DirMode = DefaultOptions().DirMode
	}

	h, err := newHandle(dimension, opts.Seed)
	if err != nil {
		return nil, err
	}

	return &Index{
		h:         h,
		dimension: dimension,
		state:     StateEmpty,
		opts:      opts,
		inserted:  roaring.New(),
	}, nil
}

func (x *Index) Dimension() int {
	return x.dimension
}

func (x *Index) State() State {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

// Path is the file currently backing the index, empty while it lives in memory.
func (x *Index) Path() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.path
}

func (x *Index) require(op string, legal ...State) error {
	if x.state == StateClosed {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	for _, s := range legal {
		if x.state == s {
			return nil
		}
	}
	return &StateError{Op: op, State: x.state}
}

func (x *Index) requireQueryable(op string) error {
	return x.require(op, StateBuilt, StatePersisted, StateLoaded)
}

func (x *Index) checkDimension(op string, v []float32) error {
	if len(v) != x.dimension {
		return &DimensionError{Op: op, Expected: x.dimension, Actual: len(v)}
	}
	return nil
}

func (x *Index) checkID(op string, id uint32) error {
	if int64(id) >= int64(x.items) {
		return &RangeError{Op: op, ID: id, Count: x.items}
	}
	return nil
}

// slot validates a caller id and returns the engine slot holding it.
func (x *Index) slot(op string, id uint32) (uint32, error) {
	if err := x.checkID(op, id); err != nil {
		return 0, err
	}
	s, ok := slotOf(x.ids, id)
	if !ok {
		return 0, fmt.Errorf("%s: item %d: %w", op, id, ErrNoSuchItem)
	}
	return s, nil
}

// distinct is the number of items actually held.
func (x *Index) distinct() int {
	if x.ids != nil {
		return int(x.ids.GetCardinality())
	}
	return x.items
}

// InsertItem stores v under id. Ids need not be contiguous; ItemCount still
// reports max id + 1.
func (x *Index) InsertItem(id uint32, v []float32) error {
	const op = "add_item"

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.require(op, StateEmpty, StateAccumulating); err != nil {
		return err
	}
	if x.unwritten {
		return &StateError{Op: op, State: x.state}
	}
	if err := x.checkDimension(op, v); err != nil {
		return err
	}
	if err := x.h.insert(id, v); err != nil {
		return err
	}

	x.inserted.Add(id)
	if slots := int(id) + 1; slots > x.items {
		x.items = slots
	}
	x.state = StateAccumulating
	return nil
}

// compact moves sparse ids onto consecutive engine slots before the forest is
// grown; the engine splits over every slot below the largest id.
func (x *Index) compact() error {
	if int(x.inserted.GetCardinality()) == x.items {
		x.ids = nil
		return nil
	}

	fresh, err := newHandle(x.dimension, x.opts.Seed)
	if err != nil {
		return err
	}

	it := x.inserted.Iterator()
	for s := uint32(0); it.HasNext(); s++ {
		v, err := x.h.item(it.Next())
		if err == nil {
			err = fresh.insert(s, v)
		}
		if err != nil {
			_ = fresh.release("release")
			return err
		}
	}

	old := x.h
	x.h = fresh
	x.ids = x.inserted
	return old.release("release")
}

// Build grows the forest. trees of -1 lets the engine choose. When the index
// was redirected to disk the result is written there and needs no Save.
func (x *Index) Build(trees int) error {
	const op = "build"

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.require(op, StateAccumulating); err != nil {
		return err
	}
	if trees == 0 || trees < -1 {
		return fmt.Errorf("%s: %w", op, ErrInvalidTreeCount)
	}

	if !x.unwritten {
		if x.diskPath != "" && x.inserted.GetCardinality() < 2 {
			return fmt.Errorf("%s: %w", op, ErrTooFewItems)
		}
		if err := x.compact(); err != nil {
			return err
		}
		if err := x.h.build(trees, ResolveJobs(x.opts.Jobs)); err != nil {
			return err
		}
	}

	if x.diskPath != "" {
		if err := x.write("save", x.diskPath); err != nil {
			x.unwritten = true
			return err
		}
		x.unwritten = false
		x.path = x.diskPath
		x.state = StatePersisted
	} else {
		x.state = StateBuilt
	}
	x.inserted = nil
	return nil
}

// Unload releases the engine while keeping the Index value around. Only Close
// is legal afterwards.
func (x *Index) Unload() error {
	const op = "unload"

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.requireQueryable(op); err != nil {
		return err
	}

	err := x.h.release(op)
	x.state = StateUnloaded
	x.clear()
	return err
}

// Close releases the engine if it is still held. It is safe to call more than once.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.state == StateClosed {
		return nil
	}
	err := x.h.release("close")
	x.state = StateClosed
	x.clear()
	return err
}

func (x *Index) clear() {
	x.items = 0
	x.inserted = nil
	x.ids = nil
	x.unwritten = false
	x.path = ""
}
