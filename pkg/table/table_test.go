package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/loxgo/pkg/value"
)

func key(s string) *value.ObjString { return value.NewObjString(s) }

func TestSetAndGet(t *testing.T) {
	tbl := New()
	k := key("greeting")

	isNew := tbl.Set(k, value.Number(1))
	assert.True(t, isNew)

	v, ok := tbl.Get(k)
	require.True(t, ok)
	assert.Equal(t, value.Number(1), v)
}

func TestSetOverwriteIsNotNew(t *testing.T) {
	tbl := New()
	k := key("x")
	tbl.Set(k, value.Number(1))

	isNew := tbl.Set(k, value.Number(2))
	assert.False(t, isNew)

	v, _ := tbl.Get(k)
	assert.Equal(t, value.Number(2), v)
}

func TestDeleteThenReinsertReusesTombstone(t *testing.T) {
	tbl := New()
	a := key("a")
	b := key("b")
	tbl.Set(a, value.Number(1))
	tbl.Set(b, value.Number(2))

	require.True(t, tbl.Delete(a))
	_, ok := tbl.Get(a)
	assert.False(t, ok)

	// Deleting a leaves b reachable.
	v, ok := tbl.Get(b)
	require.True(t, ok)
	assert.Equal(t, value.Number(2), v)

	assert.Equal(t, 1, tbl.Count())

	// Reinserting a fills its tombstone: a is new again, but no empty slot
	// is consumed, so the occupied-plus-tombstone count stays at 2.
	assert.True(t, tbl.Set(a, value.Number(3)))
	v, ok = tbl.Get(a)
	require.True(t, ok)
	assert.Equal(t, value.Number(3), v)
	assert.Equal(t, 2, tbl.count)
	assert.Equal(t, 2, tbl.Count())
}

func TestGrowthRehashesAllLiveEntries(t *testing.T) {
	tbl := New()
	keys := make([]*value.ObjString, 0, 50)
	for i := 0; i < 50; i++ {
		k := key(string(rune('a' + i%26)))
		keys = append(keys, k)
		tbl.Set(k, value.Number(float64(i)))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		require.True(t, ok)
		assert.Equal(t, value.Number(float64(i)), v)
	}
}

func TestFindStringLooksUpByContent(t *testing.T) {
	tbl := New()
	k := key("hello")
	tbl.Set(k, value.Nil)

	found := tbl.FindString("hello", value.HashString("hello"))
	require.NotNil(t, found)
	assert.Same(t, k, found)

	assert.Nil(t, tbl.FindString("goodbye", value.HashString("goodbye")))
}

func TestAddAllCopiesEntries(t *testing.T) {
	src := New()
	src.Set(key("m1"), value.Number(1))
	src.Set(key("m2"), value.Number(2))

	dst := New()
	dst.AddAll(src)

	assert.Equal(t, 2, dst.Count())
}

func TestRemoveWhiteDropsUnmarkedKeys(t *testing.T) {
	tbl := New()
	live := key("live")
	dead := key("dead")
	live.SetMarked(true)
	tbl.Set(live, value.Nil)
	tbl.Set(dead, value.Nil)

	tbl.RemoveWhite()

	_, ok := tbl.Get(live)
	assert.True(t, ok)
	_, ok = tbl.Get(dead)
	assert.False(t, ok)
}
