package internal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
	"github.com/mariotoffia/goannoy/random"
)

type engine = interfaces.AnnoyIndex[float32, uint32]

// invoke is the only place that touches engine failures. The engine reports them
// either as a returned error or as a panic; both are copied into a *NativeError
// and the raw value is dropped before returning.
func invoke(op string, call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = nativeError(op, panicMessage(r))
		}
	}()

	if callErr := call(); callErr != nil {
		return nativeError(op, callErr.Error())
	}
	return nil
}

func nativeError(op, message string) *NativeError {
	if message == "" {
		message = unknownErrorMessage
	}
	return &NativeError{Op: op, Message: strings.Clone(message)}
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// handle owns one engine instance. idx is nil once released.
type handle struct {
	idx       engine
	dimension int
	seed      uint32
}

func newHandle(dimension int, seed uint32) (*handle, error) {
	h := &handle{dimension: dimension, seed: seed}
	if err := h.create(); err != nil {
		return nil, err
	}
	return h, nil
}

// create starts a fresh engine. A zero seed gets the engine's default.
func (h *handle) create() error {
	return invoke("create", func() error {
		h.idx = builder.Index[float32, uint32]().
			AngularDistance(h.dimension).
			Random(random.NewKiss32Random(h.seed)).
			UseMultiWorkerPolicy().
			MmapIndexAllocator().
			Build()
		if h.idx == nil {
			return errors.New("engine returned no index")
		}
		return nil
	})
}

func (h *handle) live() bool {
	return h != nil && h.idx != nil
}

// release closes the engine exactly once; op names the lifecycle call that
// asked for it.
func (h *handle) release(op string) error {
	if !h.live() {
		return nil
	}
	idx := h.idx
	h.idx = nil
	return invoke(op, idx.Close)
}

// reset swaps the engine for a fresh one, discarding whatever a failed call left behind.
func (h *handle) reset() error {
	if err := h.release("release"); err != nil {
		return err
	}
	return h.create()
}

func (h *handle) insert(id uint32, v []float32) error {
	owned := make([]float32, len(v))
	copy(owned, v)

	return invoke("add_item", func() error {
		h.idx.AddItem(id, owned)
		return nil
	})
}

func (h *handle) build(trees, jobs int) error {
	return invoke("build", func() error {
		h.idx.Build(trees, jobs)
		return nil
	})
}

func (h *handle) save(path string) error {
	return invoke("save", func() error {
		return h.idx.Save(path)
	})
}

func (h *handle) load(path string) error {
	return invoke("load", func() error {
		return h.idx.Load(path)
	})
}

// item returns a copy of the engine's vector for slot id.
func (h *handle) item(id uint32) ([]float32, error) {
	var v []float32
	err := invoke("get_item", func() error {
		raw := h.idx.GetItem(id)
		v = make([]float32, len(raw))
		copy(v, raw)
		return nil
	})
	return v, err
}

func (h *handle) distance(i, j uint32) (float32, error) {
	var d float32
	err := invoke("get_distance", func() error {
		d = h.idx.GetDistance(i, j)
		return nil
	})
	return d, err
}

func (h *handle) nnsByItem(id uint32, n, searchK int) ([]uint32, []float32, error) {
	var ids []uint32
	var dists []float32
	err := invoke("get_nns_by_item", func() error {
		ctx := h.idx.CreateContext()
		ids, dists = h.idx.GetNnsByItem(id, n, searchK, ctx)
		return nil
	})
	return ids, dists, err
}

func (h *handle) nnsByVector(v []float32, n, searchK int) ([]uint32, []float32, error) {
	query := make([]float32, len(v))
	copy(query, v)

	var ids []uint32
	var dists []float32
	err := invoke("get_nns_by_vector", func() error {
		ctx := h.idx.CreateContext()
		ids, dists = h.idx.GetNnsByVector(query, n, searchK, ctx)
		return nil
	})
	return ids, dists, err
}
