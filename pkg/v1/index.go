// Package v1 is the public API for building and querying angular approximate
// nearest neighbor indexes.
//
// An Index moves through a fixed lifecycle:
//
//	New → InsertItem… → Build → (Save) → queries
//	New → RedirectToDisk → InsertItem… → Build → queries
//	New → Load → queries
//
// Operations called out of order fail with ErrIllegalState instead of reaching
// the engine. Close releases the engine and may be called at any point.
package v1

import (
	"fmt"

	"github.com/4thel00z/angular/internal"
)

// DefaultTrees asks Build to pick the number of trees itself.
const DefaultTrees = -1

// DefaultSearchK asks a query to inspect trees*n nodes.
const DefaultSearchK = -1

// Index is an angular ANN index over float32 vectors of one dimension.
// It is safe for concurrent queries; mutating calls are serialized.
type Index struct {
	idx *internal.Index
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, opts ...Option) (*Index, error) {
	cfg := &indexConfig{
		jobs: -1,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	idx, err := internal.NewIndex(dimension, internal.Options{
		Jobs:    cfg.jobs,
		DirMode: cfg.dirMode,
		Seed:    cfg.seed,
	})
	if err != nil {
		return nil, fmt.Errorf("new index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Open creates an index and loads the saved file at path into it.
func Open(path string, dimension int, prefault bool, opts ...Option) (*Index, error) {
	idx, err := New(dimension, opts...)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(path, prefault); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// Dimension is the vector length fixed at construction.
func (x *Index) Dimension() int {
	return x.idx.Dimension()
}

// State reports the current lifecycle state.
func (x *Index) State() State {
	return x.idx.State()
}

// Path is the file backing the index once saved, built on disk or loaded.
func (x *Index) Path() string {
	return x.idx.Path()
}

// InsertItem adds vector v under id. Ids may have gaps; a saved index with
// gaps gets an id map file next to it. v is copied.
func (x *Index) InsertItem(id uint32, v []float32) error {
	return x.idx.InsertItem(id, v)
}

// Build constructs the forest with the given number of trees (DefaultTrees to
// let the engine choose). No items can be inserted afterwards.
func (x *Index) Build(trees int) error {
	return x.idx.Build(trees)
}

// RedirectToDisk makes Build write the index to path instead of memory. Call
// it before inserting anything; there is no Save step afterwards. If Build
// cannot write path, fix the cause and call Build again to retry the write.
func (x *Index) RedirectToDisk(path string) error {
	return x.idx.RedirectToDisk(path)
}

// Save writes a built index to path and serves later queries from that file.
func (x *Index) Save(path string) error {
	return x.idx.Save(path)
}

// Load maps the saved index at path. prefault reads the whole file in up front,
// trading a slower load for no page faults at query time.
func (x *Index) Load(path string, prefault bool) error {
	return x.idx.Load(path, prefault)
}

// Unload releases the engine. Only Close is legal afterwards.
func (x *Index) Unload() error {
	return x.idx.Unload()
}

// QueryByItem returns up to n items nearest to the stored item id. searchK
// bounds the nodes inspected; DefaultSearchK uses trees*n.
func (x *Index) QueryByItem(id uint32, n, searchK int) ([]Neighbor, error) {
	res, err := x.idx.QueryByItem(id, n, searchK)
	if err != nil {
		return nil, err
	}
	return toNeighbors(res), nil
}

// QueryByVector returns up to n items nearest to v.
func (x *Index) QueryByVector(v []float32, n, searchK int) ([]Neighbor, error) {
	res, err := x.idx.QueryByVector(v, n, searchK)
	if err != nil {
		return nil, err
	}
	return toNeighbors(res), nil
}

// ItemVector returns a copy of the vector stored for id.
func (x *Index) ItemVector(id uint32) ([]float32, error) {
	return x.idx.ItemVector(id)
}

// Distance returns the angular distance between items i and j.
func (x *Index) Distance(i, j uint32) (float32, error) {
	return x.idx.Distance(i, j)
}

// ItemCount returns max(id)+1, which counts ids never inserted when there are gaps.
func (x *Index) ItemCount() (int, error) {
	return x.idx.ItemCount()
}

// Close releases the engine. It is safe to call more than once.
func (x *Index) Close() error {
	return x.idx.Close()
}
