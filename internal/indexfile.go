package internal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// An angular node is n_descendants, two children and the vector itself,
// each a 4-byte word. Item i is node i and the roots close the file, each
// holding the item count as its descendant count.
const nodeHeaderSize = 12

func nodeSize(dimension int) int64 {
	return nodeHeaderSize + 4*int64(dimension)
}

// checkIndexFile walks every node of an index file before the engine maps it
// and returns the item count. The engine follows child offsets without bounds
// checks, so a truncated or foreign file must never reach it.
func checkIndexFile(op, path string, dimension int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nativeError(op, err.Error())
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, nativeError(op, err.Error())
	}
	if fi.IsDir() {
		return 0, nativeError(op, fmt.Sprintf("%s is a directory", path))
	}
	if fi.Size() == 0 {
		return 0, nativeError(op, fmt.Sprintf("%s is empty", path))
	}

	s := nodeSize(dimension)
	if fi.Size()%s != 0 {
		return 0, nativeError(op, fmt.Sprintf(
			"index size %d is not a multiple of node size %d; was %s written with dimension %d and the angular metric?",
			fi.Size(), s, path, dimension))
	}
	nodes := fi.Size() / s
	if nodes > int64(^uint32(0)) {
		return 0, nativeError(op, fmt.Sprintf("%s holds %d nodes, more than a uint32 id can address", path, nodes))
	}

	word := make([]byte, 4)
	if _, err := f.ReadAt(word, fi.Size()-s); err != nil {
		return 0, nativeError(op, fmt.Sprintf("read %s: %v", path, err))
	}
	items := int64(binary.NativeEndian.Uint32(word))
	if items < 2 || items >= nodes {
		return 0, nativeError(op, fmt.Sprintf(
			"%s is not an index: last root claims %d items in a file of %d nodes", path, items, nodes))
	}

	if err := walkNodes(f, s, nodes, items, int64(dimension)+2); err != nil {
		return 0, nativeError(op, fmt.Sprintf("%s is not an index: %v", path, err))
	}
	return int(items), nil
}

// walkNodes checks the descendant count and child offsets of every node.
// maxChildren is the number of child ids that fit inline in one node.
func walkNodes(r io.Reader, size, nodes, items, maxChildren int64) error {
	br := bufio.NewReader(r)
	buf := make([]byte, size)
	for i := int64(0); i < nodes; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("node %d is truncated", i)
			}
			return err
		}

		d := int64(binary.NativeEndian.Uint32(buf))
		if i < items {
			if d > 1 {
				return fmt.Errorf("item %d claims %d descendants", i, d)
			}
			continue
		}

		switch {
		case d < 2 || d > items:
			return fmt.Errorf("node %d claims %d descendants of %d items", i, d, items)
		case d <= maxChildren:
			for c := int64(0); c < d; c++ {
				if child := int64(binary.NativeEndian.Uint32(buf[4+4*c:])); child >= items {
					return fmt.Errorf("node %d lists item %d of %d", i, child, items)
				}
			}
		default:
			for c := int64(0); c < 2; c++ {
				if child := int64(binary.NativeEndian.Uint32(buf[4+4*c:])); child >= nodes {
					return fmt.Errorf("node %d points at node %d of %d", i, child, nodes)
				}
			}
		}
	}
	return nil
}
