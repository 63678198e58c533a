package directory

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Thifhi/metall/internal/format"
)

func TestInsertFindErase(t *testing.T) {
	d := New()
	require.NoError(t, d.Insert(format.KindNamed, "x", 128, 8, "uint64"))

	e, ok := d.Find(format.KindNamed, "x")
	require.True(t, ok)
	require.Equal(t, int64(128), e.Offset)
	require.Equal(t, uint64(8), e.Length)

	require.True(t, d.Erase(format.KindNamed, "x"))
	_, ok = d.Find(format.KindNamed, "x")
	require.False(t, ok)
	require.False(t, d.Erase(format.KindNamed, "x"))
}

func TestInsertRejectsDuplicateName(t *testing.T) {
	d := New()
	require.NoError(t, d.Insert(format.KindNamed, "k", 0, 1, "T"))
	err := d.Insert(format.KindNamed, "k", 64, 1, "T")
	require.ErrorIs(t, err, ErrNameInUse)
}

func TestKindsAreIndependentNamespaces(t *testing.T) {
	d := New()
	require.NoError(t, d.Insert(format.KindNamed, "k", 0, 1, "T"))
	require.NoError(t, d.Insert(format.KindUnique, "k", 64, 1, "T"))

	_, ok := d.Find(format.KindNamed, "k")
	require.True(t, ok)
	_, ok = d.Find(format.KindUnique, "k")
	require.True(t, ok)
}

func TestAnonymousKeyedByOffset(t *testing.T) {
	d := New()
	require.NoError(t, d.Insert(format.KindAnonymous, "", 256, 16, "T"))

	e, ok := d.FindAnonymous(256)
	require.True(t, ok)
	require.Equal(t, int64(256), e.Offset)

	require.True(t, d.EraseAnonymous(256))
	_, ok = d.FindAnonymous(256)
	require.False(t, ok)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	d := New()
	require.NoError(t, d.Insert(format.KindNamed, "alpha", 8, 4, "int32"))
	require.NoError(t, d.Insert(format.KindUnique, "beta", 16, 8, "float64"))
	require.NoError(t, d.Insert(format.KindAnonymous, "", 32, 12, "struct{}"))
	require.NoError(t, d.SetDescription(format.KindNamed, "alpha", "the answer"))

	var buf bytes.Buffer
	require.NoError(t, d.Serialize(&buf))

	d2 := New()
	require.NoError(t, d2.Deserialize(bytes.NewReader(buf.Bytes())))

	require.Equal(t, 1, d2.Count(format.KindNamed))
	require.Equal(t, 1, d2.Count(format.KindUnique))
	require.Equal(t, 1, d2.Count(format.KindAnonymous))

	e, ok := d2.Find(format.KindNamed, "alpha")
	require.True(t, ok)
	require.Equal(t, int64(8), e.Offset)
	require.Equal(t, "the answer", e.Description)

	_, ok = d2.FindAnonymous(32)
	require.True(t, ok)
}

func TestIterateIsSortedAndStable(t *testing.T) {
	d := New()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, d.Insert(format.KindNamed, name, 0, 1, "T"))
	}
	var got []string
	for e := range d.Iterate(format.KindNamed) {
		got = append(got, e.Name)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}
