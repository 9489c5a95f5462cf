package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

func checkPath(op, path string) error {
	switch {
	case path == "":
		return &PathError{Op: op, Path: path, Reason: "empty"}
	case !utf8.ValidString(path):
		return &PathError{Op: op, Path: path, Reason: "not valid UTF-8"}
	case strings.IndexByte(path, 0) >= 0:
		return &PathError{Op: op, Path: path, Reason: "contains a NUL byte"}
	}
	return nil
}

func (x *Index) ensureDir(op, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, x.opts.DirMode); err != nil {
		return nativeError(op, fmt.Sprintf("create directory: %v", err))
	}
	return nil
}

// RedirectToDisk makes the coming Build write its trees into path instead of
// memory. It must be called before the first InsertItem. The target is created
// right away so an unwritable path fails here rather than after the build.
func (x *Index) RedirectToDisk(path string) error {
	const op = "on_disk_build"

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.require(op, StateEmpty); err != nil {
		return err
	}
	if err := checkPath(op, path); err != nil {
		return err
	}
	if err := x.ensureDir(op, path); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nativeError(op, err.Error())
	}
	if err := f.Close(); err != nil {
		return nativeError(op, err.Error())
	}

	x.diskPath = path
	return nil
}

// write saves the built forest and its id map to path. The map goes first so a
// watcher that reacts to the index file always finds the matching map.
func (x *Index) write(op, path string) error {
	if x.distinct() < 2 {
		return fmt.Errorf("%s: %w", op, ErrTooFewItems)
	}
	if err := x.ensureDir(op, path); err != nil {
		return err
	}
	if err := writeIDMap(op, path, x.ids); err != nil {
		return err
	}
	return x.h.save(path)
}

// Save writes a built index to path; afterwards queries are served from the file.
func (x *Index) Save(path string) error {
	const op = "save"

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.require(op, StateBuilt); err != nil {
		return err
	}
	if err := checkPath(op, path); err != nil {
		return err
	}
	if err := x.write(op, path); err != nil {
		return err
	}

	x.path = path
	x.state = StatePersisted
	return nil
}

// Load maps a previously saved index. With prefault every page of the file is
// read in up front instead of on first access. A failed Load leaves the index
// empty and ready for another attempt.
func (x *Index) Load(path string, prefault bool) error {
	const op = "load"

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.require(op, StateEmpty); err != nil {
		return err
	}
	if x.diskPath != "" {
		return fmt.Errorf("index is redirected to %s: %w", x.diskPath, &StateError{Op: op, State: x.state})
	}
	if err := checkPath(op, path); err != nil {
		return err
	}

	n, err := checkIndexFile(op, path, x.dimension)
	if err != nil {
		return err
	}
	ids, err := readIDMap(op, path, n)
	if err != nil {
		return err
	}
	if prefault {
		if err := prefaultFile(path); err != nil {
			return nativeError(op, fmt.Sprintf("prefault: %v", err))
		}
	}

	if err := x.h.load(path); err != nil {
		if resetErr := x.h.reset(); resetErr != nil {
			return fmt.Errorf("%w (reset: %v)", err, resetErr)
		}
		return err
	}

	x.items = n
	if ids != nil {
		x.items = int(ids.Maximum()) + 1
	}
	x.ids = ids
	x.inserted = nil
	x.path = path
	x.state = StateLoaded
	return nil
}
