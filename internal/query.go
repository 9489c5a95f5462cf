package internal

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Neighbor is one query hit.
type Neighbor struct {
	ID       uint32  `json:"id"`
	Distance float32 `json:"distance"`
}

func checkQueryArgs(n, searchK int) error {
	if n < 0 {
		return ErrInvalidCount
	}
	if searchK == 0 || searchK < -1 {
		return ErrInvalidSearchK
	}
	return nil
}

// collect negotiates how many engine results are valid and copies exactly that
// many into a fresh slice, turning engine slots back into caller ids. Nothing
// past the negotiated count is ever read.
func collect(op string, n int, ids *roaring.Bitmap, slots []uint32, dists []float32) ([]Neighbor, error) {
	if len(slots) != len(dists) {
		return nil, nativeError(op, fmt.Sprintf("engine returned %d ids but %d distances", len(slots), len(dists)))
	}

	count := len(slots)
	if count > n {
		count = n
	}

	out := make([]Neighbor, count)
	for i := range out {
		id, err := idOf(ids, slots[i])
		if err != nil {
			return nil, nativeError(op, fmt.Sprintf("engine returned unknown slot %d", slots[i]))
		}
		out[i] = Neighbor{ID: id, Distance: dists[i]}
	}
	return out, nil
}

// QueryByItem returns up to n items nearest to an already inserted item.
// searchK of -1 lets the engine pick trees*n.
func (x *Index) QueryByItem(id uint32, n, searchK int) ([]Neighbor, error) {
	const op = "get_nns_by_item"

	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.requireQueryable(op); err != nil {
		return nil, err
	}
	if err := checkQueryArgs(n, searchK); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	slot, err := x.slot(op, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []Neighbor{}, nil
	}

	slots, dists, err := x.h.nnsByItem(slot, n, searchK)
	if err != nil {
		return nil, err
	}
	return collect(op, n, x.ids, slots, dists)
}

// QueryByVector returns up to n items nearest to v.
func (x *Index) QueryByVector(v []float32, n, searchK int) ([]Neighbor, error) {
	const op = "get_nns_by_vector"

	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.requireQueryable(op); err != nil {
		return nil, err
	}
	if err := x.checkDimension(op, v); err != nil {
		return nil, err
	}
	if err := checkQueryArgs(n, searchK); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return []Neighbor{}, nil
	}

	slots, dists, err := x.h.nnsByVector(v, n, searchK)
	if err != nil {
		return nil, err
	}
	return collect(op, n, x.ids, slots, dists)
}

// ItemVector returns a copy of the vector stored for id.
func (x *Index) ItemVector(id uint32) ([]float32, error) {
	const op = "get_item"

	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.requireQueryable(op); err != nil {
		return nil, err
	}
	slot, err := x.slot(op, id)
	if err != nil {
		return nil, err
	}

	v, err := x.h.item(slot)
	if err != nil {
		return nil, err
	}
	if len(v) < x.dimension {
		return nil, nativeError(op, fmt.Sprintf("engine returned %d components, want %d", len(v), x.dimension))
	}

	out := make([]float32, x.dimension)
	copy(out, v)
	return out, nil
}

// Distance returns the angular distance between two stored items.
func (x *Index) Distance(i, j uint32) (float32, error) {
	const op = "get_distance"

	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.requireQueryable(op); err != nil {
		return 0, err
	}
	si, err := x.slot(op, i)
	if err != nil {
		return 0, err
	}
	sj, err := x.slot(op, j)
	if err != nil {
		return 0, err
	}
	return x.h.distance(si, sj)
}

// ItemCount returns the number of storage slots, which is max id + 1 rather
// than the number of distinct ids inserted.
func (x *Index) ItemCount() (int, error) {
	const op = "get_n_items"

	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := x.requireQueryable(op); err != nil {
		return 0, err
	}
	return x.items, nil
}
