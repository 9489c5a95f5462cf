package internal

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
)

// IDMapSuffix names the file saved next to an index whose ids are sparse.
// It holds the set of inserted ids; engine slot i is the i-th smallest.
const IDMapSuffix = ".ids"

func idMapPath(path string) string {
	return path + IDMapSuffix
}

// slotOf returns the engine slot for a caller id. ids is nil when the two
// coincide.
func slotOf(ids *roaring.Bitmap, id uint32) (uint32, bool) {
	if ids == nil {
		return id, true
	}
	if !ids.Contains(id) {
		return 0, false
	}
	return uint32(ids.Rank(id) - 1), true
}

func idOf(ids *roaring.Bitmap, slot uint32) (uint32, error) {
	if ids == nil {
		return slot, nil
	}
	return ids.Select(slot)
}

// writeIDMap writes ids next to path, or removes a stale map when ids is nil.
func writeIDMap(op, path string, ids *roaring.Bitmap) error {
	target := idMapPath(path)
	if ids == nil {
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nativeError(op, fmt.Sprintf("remove id map: %v", err))
		}
		return nil
	}

	f, err := os.Create(target)
	if err != nil {
		return nativeError(op, fmt.Sprintf("write id map: %v", err))
	}
	w := bufio.NewWriter(f)
	if _, err := ids.WriteTo(w); err != nil {
		_ = f.Close()
		return nativeError(op, fmt.Sprintf("write id map: %v", err))
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nativeError(op, fmt.Sprintf("write id map: %v", err))
	}
	if err := f.Close(); err != nil {
		return nativeError(op, fmt.Sprintf("write id map: %v", err))
	}
	return nil
}

// readIDMap reads the map saved next to path. It returns nil when there is
// none, and checks that the map covers exactly the index's slots.
func readIDMap(op, path string, slots int) (*roaring.Bitmap, error) {
	f, err := os.Open(idMapPath(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, nativeError(op, fmt.Sprintf("read id map: %v", err))
	}
	defer f.Close()

	ids := roaring.New()
	if _, err := ids.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, nativeError(op, fmt.Sprintf("read id map %s: %v", idMapPath(path), err))
	}
	if n := ids.GetCardinality(); n != uint64(slots) {
		return nil, nativeError(op, fmt.Sprintf(
			"id map %s holds %d ids but %s has %d items", idMapPath(path), n, path, slots))
	}
	return ids, nil
}
