package manager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func smallOpts() []Option {
	return []Option{WithChunkSize(4096), WithCapacity(16 << 20)}
}

// S1: construct a named value, close, reopen read-only, find it back.
func TestScenarioConstructCloseReopenFind(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s1")

	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)

	_, err = Construct[uint64](m, Named, "x", 1, func(i int, slot *uint64) error {
		*slot = 42
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	m2, err := OpenReadOnly(dir, smallOpts()...)
	require.NoError(t, err)
	defer m2.Close()

	addr, count, ok := Find[uint64](m2, Named, "x")
	require.True(t, ok)
	require.Equal(t, 1, count)
	require.Equal(t, uint64(42), *addr)
}

// S2: allocate then deallocate a raw span; all memory is free afterward.
func TestScenarioAllocateDeallocateAllFree(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s2")
	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	defer m.Close()

	p, err := m.Allocate(64)
	require.NoError(t, err)
	require.NoError(t, m.Deallocate(p))
	require.True(t, m.AllMemoryDeallocated())
}

// S3: capacity exhaustion on the large-allocation path.
func TestScenarioOutOfMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s3")
	m, err := Create(dir, WithChunkSize(2<<20), WithCapacity(8<<20))
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Allocate(3 << 20)
	require.NoError(t, err)
	_, err = m.Allocate(3 << 20)
	require.NoError(t, err)
	_, err = m.Allocate(1)
	require.ErrorIs(t, err, ErrOutOfMemory)
}

// S4: name_in_use on a second Construct, find-or-construct returns the winner.
func TestScenarioNameInUseAndFindOrConstruct(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s4")
	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	defer m.Close()

	_, err = Construct[uint64](m, Named, "k", 1, func(i int, slot *uint64) error {
		*slot = 1
		return nil
	})
	require.NoError(t, err)

	_, err = Construct[uint64](m, Named, "k", 2, func(i int, slot *uint64) error {
		*slot = 2
		return nil
	})
	require.ErrorIs(t, err, ErrNameInUse)

	found, err := FindOrConstruct[uint64](m, Named, "k", 1, func(i int, slot *uint64) error {
		*slot = 9
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), *found)
}

// S5: snapshot preserves content under a fresh identity after the source is removed.
func TestScenarioSnapshotThenRemove(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "s5")
	dst := filepath.Join(root, "s5-snap")

	m, err := Create(src, smallOpts()...)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		name := string(rune('a' + i))
		_, err := Construct[uint64](m, Named, name, 1, func(j int, slot *uint64) error {
			*slot = uint64(i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, m.Close())

	m, err = Open(src, smallOpts()...)
	require.NoError(t, err)
	srcUUID := m.GetUUID()
	require.NoError(t, m.Snapshot(context.Background(), dst, false, 1))
	require.NoError(t, m.Close())

	require.NoError(t, Remove(src))

	m2, err := Open(dst, smallOpts()...)
	require.NoError(t, err)
	defer m2.Close()

	for i := 0; i < 10; i++ {
		name := string(rune('a' + i))
		addr, count, ok := Find[uint64](m2, Named, name)
		require.True(t, ok, "entry %s missing after snapshot", name)
		require.Equal(t, 1, count)
		require.Equal(t, uint64(i), *addr)
	}

	dstUUID := m2.GetUUID()
	require.NotEmpty(t, dstUUID)
	require.NotEqual(t, srcUUID, dstUUID)
}

// S6: a store left open without Close is reported inconsistent, and Open
// on it fails until Remove + fresh Create recovers it.
func TestScenarioCrashMarkerDiscipline(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s6")

	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	_, err = m.Allocate(64)
	require.NoError(t, err)
	// Simulate a crash: no Close call, so the marker is never restored.

	require.False(t, Consistent(dir))

	_, err = Open(dir, smallOpts()...)
	require.ErrorIs(t, err, ErrInconsistentDatastore)

	require.NoError(t, Remove(dir))
	m2, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	require.NoError(t, m2.Close())
}

// Property 8: constructing N objects then destroying all of them leaves
// every chunk free.
func TestPropertyAllDeallocatedAfterConstructDestroyAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prop8")
	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	defer m.Close()

	const n = 20
	for i := 0; i < n; i++ {
		name := string(rune('a' + i%26))
		_, err := Construct[uint64](m, Named, name, i+1, func(j int, slot *uint64) error {
			return nil
		})
		if err == nil {
			require.True(t, Destroy[uint64](m, Named, name))
		}
	}
	require.True(t, m.AllMemoryDeallocated())
}

// Property 5: Close is idempotent.
func TestPropertyIdempotentClose(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prop5")
	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

// Property 3: AllocateAligned returns an offset divisible by the requested
// power-of-two alignment.
func TestPropertyAllocateAlignedOffsetAlignment(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prop3")
	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	defer m.Close()

	base := m.DataBase()
	for _, align := range []int64{8, 16, 64, 256} {
		addr, err := m.AllocateAligned(10, align)
		require.NoError(t, err)
		offset := int64(addr - base)
		require.Zero(t, offset%align)
	}
}

// DestroyPtr removes an anonymous allocation via its address alone.
func TestDestroyPtrAnonymous(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "destroyptr")
	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	defer m.Close()

	ptr, err := Construct[uint64](m, Anonymous, "", 1, func(i int, slot *uint64) error {
		*slot = 7
		return nil
	})
	require.NoError(t, err)
	require.True(t, DestroyPtr[uint64](m, ptr))
	require.True(t, m.AllMemoryDeallocated())
}

// A failing initializer leaves no directory entry and no leaked allocation.
func TestConstructInitFailureCleansUp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "initfail")
	m, err := Create(dir, smallOpts()...)
	require.NoError(t, err)
	defer m.Close()

	_, err = Construct[uint64](m, Named, "bad", 3, func(i int, slot *uint64) error {
		if i == 1 {
			return errInit
		}
		*slot = uint64(i)
		return nil
	})
	require.ErrorIs(t, err, ErrUserConstructorFailed)

	_, _, ok := Find[uint64](m, Named, "bad")
	require.False(t, ok)
	require.True(t, m.AllMemoryDeallocated())
}

var errInit = requireError("boom")

type requireError string

func (e requireError) Error() string { return string(e) }
