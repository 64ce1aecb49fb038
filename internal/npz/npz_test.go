package npz

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/parity/internal/npy"
	"github.com/born-ml/parity/internal/tensor"
)

func sampleSet(t *testing.T) *tensor.Set {
	t.Helper()
	set := tensor.NewSet()
	require.NoError(t, set.Add("conv1_w", tensor.MustFromSlice(tensor.Shape{2, 1, 2, 2}, []float32{1, 2, 3, 4, 5, 6, 7, 8})))
	require.NoError(t, set.Add("bn1_rm", tensor.MustFromSlice(tensor.Shape{2}, []float64{0.5, -0.5})))
	require.NoError(t, set.Add("labels", tensor.MustFromSlice(tensor.Shape{3}, []int64{1, 0, 2})))
	return set
}

func encode(t *testing.T, set *tensor.Set, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, set, opts))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		set := sampleSet(t)
		data := encode(t, set, Options{Compress: compress})

		got, err := Decode(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, set.Keys(), got.Keys(), "compress=%v", compress)
		for _, key := range set.Keys() {
			want, _ := set.Get(key)
			have, ok := got.Get(key)
			require.True(t, ok)
			assert.True(t, want.Equal(have), "key %s compress=%v", key, compress)
		}
	}
}

func TestEntriesUseStoreByDefault(t *testing.T) {
	data := encode(t, sampleSet(t), Options{})
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
		assert.Equal(t, zip.Store, f.Method)
		assert.Equal(t, epoch.Year(), f.Modified.Year())
	}
	assert.Equal(t, []string{"conv1_w.npy", "bn1_rm.npy", "labels.npy"}, names)
}

func TestDeterministic(t *testing.T) {
	for _, opts := range []Options{{}, {Compress: true}, {Compress: true, Level: 9}} {
		first := encode(t, sampleSet(t), opts)
		second := encode(t, sampleSet(t), opts)
		assert.Equal(t, first, second)
	}
}

func TestCompressShrinksZeros(t *testing.T) {
	set := tensor.NewSet()
	zeros, err := tensor.Wrap(tensor.Float32, tensor.Shape{1024}, make([]byte, 4096), false)
	require.NoError(t, err)
	set.MustAdd("zeros", zeros)

	stored := encode(t, set, Options{})
	deflated := encode(t, set, Options{Compress: true})
	assert.Less(t, len(deflated), len(stored))
}

func TestInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, sampleSet(t), Options{Compress: true, Level: 42})
	assert.Error(t, err)
}

// rawArchive writes entries verbatim so tests can build malformed archives.
func rawArchive(t *testing.T, entries ...[2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e[0])
		require.NoError(t, err)
		_, err = w.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func blob(t *testing.T, a *tensor.Array) string {
	t.Helper()
	data, err := npy.Marshal(a)
	require.NoError(t, err)
	return string(data)
}

func TestDuplicateKeys(t *testing.T) {
	one := blob(t, tensor.MustFromSlice(tensor.Shape{1}, []float32{1}))
	data := rawArchive(t, [2]string{"w.npy", one}, [2]string{"w.npy", one})

	_, err := Decode(bytes.NewReader(data), int64(len(data)))
	var dup *tensor.DuplicateKeyError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "w", dup.Key)
}

func TestMalformedEntry(t *testing.T) {
	good := blob(t, tensor.MustFromSlice(tensor.Shape{1}, []float32{1}))
	data := rawArchive(t, [2]string{"good.npy", good}, [2]string{"bad.npy", "not numpy"})

	_, err := Decode(bytes.NewReader(data), int64(len(data)))
	var fe *FormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, "bad.npy", fe.Entry)
	assert.ErrorIs(t, err, npy.ErrInvalidMagic)
}

func TestNotAZip(t *testing.T) {
	data := []byte("definitely not a zip archive")
	_, err := Decode(bytes.NewReader(data), int64(len(data)))
	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestIgnoresNonNPYEntries(t *testing.T) {
	good := blob(t, tensor.MustFromSlice(tensor.Shape{1}, []int32{7}))
	data := rawArchive(t, [2]string{"README.txt", "hello"}, [2]string{"nested/x.npy", good})

	set, err := Decode(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"nested/x"}, set.Keys())

	rd, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"README.txt"}, rd.Ignored())
	assert.Equal(t, []string{"nested/x"}, rd.Keys())
}

func TestRandomAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.npz")
	set := sampleSet(t)
	require.NoError(t, WriteFile(path, set, Options{Compress: true}))

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	assert.Equal(t, set.Keys(), rd.Keys())
	assert.True(t, rd.Has("bn1_rm"))
	assert.False(t, rd.Has("fc_w"))

	got, err := rd.Array("bn1_rm")
	require.NoError(t, err)
	want, _ := set.Get("bn1_rm")
	assert.True(t, want.Equal(got))

	_, err = rd.Array("fc_w")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acts.npz")
	set := sampleSet(t)
	require.NoError(t, WriteFile(path, set, Options{}))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, set.Len(), got.Len())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.npz"))
	assert.Error(t, err)
}
