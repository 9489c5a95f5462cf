package internal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cornerVectors = map[uint32][]float32{
	0: {1, 0, 0},
	1: {0, 1, 0},
	2: {0, 0, 1},
	3: {1, 1, 0},
}

func TestSaveThenLoadReturnsSameResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.ann")
	query := []float32{0.9, 0.8, 0.1}

	idx := newTestIndex(t, 3)
	insertAll(t, idx, cornerVectors)
	require.NoError(t, idx.Build(3))

	before, err := idx.QueryByVector(query, 4, -1)
	require.NoError(t, err)

	require.NoError(t, idx.Save(path))
	assert.Equal(t, StatePersisted, idx.State())
	assert.Equal(t, path, idx.Path())

	afterSave, err := idx.QueryByVector(query, 4, -1)
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(afterSave))

	loaded := newTestIndex(t, 3)
	require.NoError(t, loaded.Load(path, false))
	assert.Equal(t, StateLoaded, loaded.State())

	got, err := loaded.QueryByVector(query, 4, -1)
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(got))
	for i := range got {
		assert.InDelta(t, before[i].Distance, got[i].Distance, 1e-6)
	}

	n, err := loaded.ItemCount()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	v, err := loaded.ItemVector(3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 0}, v)
}

func TestLoadWithPrefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.ann")
	require.NoError(t, builtIndex(t).Save(path))

	idx := newTestIndex(t, 3)
	require.NoError(t, idx.Load(path, true))

	res, err := idx.QueryByItem(2, 1, -1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint32(2), res[0].ID)
}

func TestRedirectToDiskMatchesInMemoryBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ondisk.ann")
	query := []float32{0.2, 0.9, 0.3}

	mem := newTestIndex(t, 3)
	insertAll(t, mem, cornerVectors)
	require.NoError(t, mem.Build(2))

	disk := newTestIndex(t, 3)
	require.NoError(t, disk.RedirectToDisk(path))
	assert.Equal(t, StateEmpty, disk.State())
	insertAll(t, disk, cornerVectors)
	require.NoError(t, disk.Build(2))

	assert.Equal(t, StatePersisted, disk.State(), "an on-disk build needs no save")
	assert.Equal(t, path, disk.Path())

	want, err := mem.QueryByVector(query, 4, -1)
	require.NoError(t, err)
	got, err := disk.QueryByVector(query, 4, -1)
	require.NoError(t, err)

	require.Equal(t, ids(want), ids(got))
	for i := range got {
		assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-5)
	}

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, fi.Size()%nodeSize(3))

	// the file is a regular saved index
	reopened := newTestIndex(t, 3)
	require.NoError(t, reopened.Load(path, false))
	again, err := reopened.QueryByVector(query, 4, -1)
	require.NoError(t, err)
	assert.Equal(t, ids(want), ids(again))
}

func TestRedirectAfterInsertIsIllegal(t *testing.T) {
	idx := newTestIndex(t, 3)
	require.NoError(t, idx.InsertItem(0, []float32{1, 0, 0}))

	err := idx.RedirectToDisk(filepath.Join(t.TempDir(), "late.ann"))
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.ann")

	idx := newTestIndex(t, 3)
	err := idx.Load(missing, false)
	require.Error(t, err)
	assert.NotEmpty(t, err.Error())

	var nativeErr *NativeError
	require.ErrorAs(t, err, &nativeErr)
	assert.Equal(t, "load", nativeErr.Op)
	assert.NotEmpty(t, nativeErr.Message)

	// still empty and usable
	assert.Equal(t, StateEmpty, idx.State())
	assert.True(t, idx.h.live())
	insertAll(t, idx, unitVectors)
	require.NoError(t, idx.Build(-1))

	// and a fresh index can retry with a real file
	path := filepath.Join(t.TempDir(), "index.ann")
	require.NoError(t, idx.Save(path))
	retry := newTestIndex(t, 3)
	require.Error(t, retry.Load(missing, true))
	require.NoError(t, retry.Load(path, false))
}

func TestLoadRejectsMalformedFiles(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.ann")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	ragged := filepath.Join(dir, "ragged.ann")
	require.NoError(t, os.WriteFile(ragged, make([]byte, nodeSize(3)*2+5), 0644))

	zeroed := filepath.Join(dir, "zeroed.ann")
	require.NoError(t, os.WriteFile(zeroed, make([]byte, nodeSize(3)*4), 0644))

	// every node claims two descendants, so the trailing root run covers the file
	uniform := filepath.Join(dir, "uniform.ann")
	nodes := make([]byte, nodeSize(3)*4)
	for i := int64(0); i < 4; i++ {
		binary.NativeEndian.PutUint32(nodes[i*nodeSize(3):], 2)
	}
	require.NoError(t, os.WriteFile(uniform, nodes, 0644))

	// a real index whose last root points past the file
	wild := filepath.Join(dir, "wild.ann")
	require.NoError(t, builtIndex(t).Save(wild))
	raw, err := os.ReadFile(wild)
	require.NoError(t, err)
	binary.NativeEndian.PutUint32(raw[int64(len(raw))-nodeSize(3)+4:], 1<<30)
	require.NoError(t, os.WriteFile(wild, raw, 0644))

	cases := map[string]string{
		"empty":     empty,
		"ragged":    ragged,
		"zeroed":    zeroed,
		"uniform":   uniform,
		"wild root": wild,
		"directory": dir,
	}

	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			idx := newTestIndex(t, 3)
			err := idx.Load(path, false)
			var nativeErr *NativeError
			require.ErrorAs(t, err, &nativeErr)
			assert.Equal(t, "load", nativeErr.Op)
			assert.Equal(t, StateEmpty, idx.State())
			assert.True(t, idx.h.live())
		})
	}
}

func TestLoadWrongDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dim3.ann")
	require.NoError(t, builtIndex(t).Save(path))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	if fi.Size()%nodeSize(5) == 0 {
		t.Skip("file size happens to fit dimension 5 as well")
	}

	idx := newTestIndex(t, 5)
	err = idx.Load(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension 5")
	assert.Equal(t, StateEmpty, idx.State())
}

func TestInvalidPaths(t *testing.T) {
	idx := builtIndex(t)

	for _, path := range []string{"", "bad\x00name.ann", "bad\xffname.ann"} {
		err := idx.Save(path)
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", path)
	}
	assert.Equal(t, StateBuilt, idx.State())

	empty := newTestIndex(t, 3)
	assert.ErrorIs(t, empty.Load("nul\x00.ann", false), ErrInvalidPath)
	assert.ErrorIs(t, empty.RedirectToDisk(""), ErrInvalidPath)
}

func TestPrefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, make([]byte, 3*os.Getpagesize()+17), 0644))
	assert.NoError(t, prefaultFile(path))

	emptyPath := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0644))
	assert.NoError(t, prefaultFile(emptyPath))

	assert.Error(t, prefaultFile(filepath.Join(t.TempDir(), "missing")))
}

func TestLoadAcceptsSavedIndexSizes(t *testing.T) {
	for _, n := range []uint32{2, 3, 6, 50} {
		idx := newTestIndex(t, 3)
		for i := uint32(0); i < n; i++ {
			f := float32(i)
			require.NoError(t, idx.InsertItem(i, []float32{1 + f, f * f, 3 - f}))
		}
		require.NoError(t, idx.Build(-1))

		path := filepath.Join(t.TempDir(), "sized.ann")
		require.NoError(t, idx.Save(path))

		count, err := checkIndexFile("load", path, 3)
		require.NoError(t, err, "%d items", n)
		assert.Equal(t, int(n), count)
	}
}

func TestRedirectedBuildRetriesFailedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ondisk.ann")

	idx := newTestIndex(t, 3)
	require.NoError(t, idx.RedirectToDisk(path))
	insertAll(t, idx, cornerVectors)

	// something else claims the target before the build finishes
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0755))

	err := idx.Build(2)
	var nativeErr *NativeError
	require.ErrorAs(t, err, &nativeErr)
	assert.Equal(t, StateAccumulating, idx.State())
	assert.ErrorIs(t, idx.InsertItem(4, []float32{1, 1, 1}), ErrIllegalState)

	require.NoError(t, os.Remove(path))
	require.NoError(t, idx.Build(2))
	assert.Equal(t, StatePersisted, idx.State())
	assert.Equal(t, path, idx.Path())

	res, err := idx.QueryByItem(3, 1, -1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3}, ids(res))
}

func TestRedirectToUnwritablePath(t *testing.T) {
	dir := t.TempDir()

	idx := newTestIndex(t, 3)
	err := idx.RedirectToDisk(dir)
	var nativeErr *NativeError
	require.ErrorAs(t, err, &nativeErr)
	assert.Equal(t, "on_disk_build", nativeErr.Op)
	assert.Equal(t, StateEmpty, idx.State())

	path := filepath.Join(dir, "ok.ann")
	require.NoError(t, idx.RedirectToDisk(path))
	assert.FileExists(t, path)
}

func TestSparseIDsSurviveSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.ann")
	items := map[uint32][]float32{
		0: {1, 0, 0},
		5: {0, 1, 0},
		9: {0, 0, 1},
	}
	query := []float32{0.2, 0.1, 0.9}

	idx := newTestIndex(t, 3)
	insertAll(t, idx, items)
	require.NoError(t, idx.Build(-1))
	want, err := idx.QueryByVector(query, 3, -1)
	require.NoError(t, err)

	require.NoError(t, idx.Save(path))
	assert.FileExists(t, path+IDMapSuffix)

	loaded := newTestIndex(t, 3)
	require.NoError(t, loaded.Load(path, false))

	got, err := loaded.QueryByVector(query, 3, -1)
	require.NoError(t, err)
	assert.Equal(t, ids(want), ids(got))

	n, err := loaded.ItemCount()
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	for id, v := range items {
		stored, err := loaded.ItemVector(id)
		require.NoError(t, err)
		assert.Equal(t, v, stored)
	}
	_, err = loaded.ItemVector(3)
	assert.ErrorIs(t, err, ErrNoSuchItem)
}

func TestDenseSaveRemovesStaleIDMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.ann")

	sparse := newTestIndex(t, 3)
	insertAll(t, sparse, map[uint32][]float32{1: {1, 0, 0}, 4: {0, 1, 0}})
	require.NoError(t, sparse.Build(-1))
	require.NoError(t, sparse.Save(path))
	require.FileExists(t, path+IDMapSuffix)

	require.NoError(t, builtIndex(t).Save(path))
	assert.NoFileExists(t, path+IDMapSuffix)

	loaded := newTestIndex(t, 3)
	require.NoError(t, loaded.Load(path, false))
	n, err := loaded.ItemCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLoadRejectsMismatchedIDMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.ann")
	require.NoError(t, builtIndex(t).Save(path))
	require.NoError(t, writeIDMap("save", path, roaring.BitmapOf(2, 8)))

	idx := newTestIndex(t, 3)
	err := idx.Load(path, false)
	var nativeErr *NativeError
	require.ErrorAs(t, err, &nativeErr)
	assert.Contains(t, nativeErr.Message, "holds 2 ids")
	assert.Equal(t, StateEmpty, idx.State())
}
