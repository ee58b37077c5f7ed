package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentic-research/pathstore/internal/kvstore"
	"github.com/agentic-research/pathstore/internal/pathcodec"
	"github.com/agentic-research/pathstore/schema"
)

// testSchema builds the schema used by every literal scenario in the
// spec: root is a Document with field "hello" = Document{"world":
// Scalar, "new york": Scalar}, and field "fruits" = Collection of
// Document{"color": Scalar}.
func testSchema() *schema.Node {
	return schema.Document(map[string]*schema.Node{
		"hello": schema.Document(map[string]*schema.Node{
			"world":    schema.Scalar(),
			"new york": schema.Scalar(),
		}),
		"fruits": schema.Collection(schema.Document(map[string]*schema.Node{
			"color": schema.Scalar(),
		})),
	})
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	kv, err := kvstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv, testSchema())
}

func TestScalarRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v", "new york": "w"})
	require.NoError(t, err)

	v, err := e.Get(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestDocumentRead(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v", "new york": "w"})
	require.NoError(t, err)

	v, err := e.Get(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Equal(t, map[string]Value{"world": "v", "new york": "w"}, v)
}

func TestCollectionEnumeration(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, []string{"fruits", "apple"}, map[string]any{"color": "red"}))
	require.NoError(t, e.Insert(ctx, []string{"fruits", "banana"}, map[string]any{"color": "yellow"}))
	require.NoError(t, e.Insert(ctx, []string{"fruits", "blueberry"}, map[string]any{"color": "purple"}))

	v, err := e.Get(ctx, []string{"fruits"})
	require.NoError(t, err)
	require.Equal(t, map[string]Value{
		"apple":     map[string]Value{"color": "red"},
		"banana":    map[string]Value{"color": "yellow"},
		"blueberry": map[string]Value{"color": "purple"},
	}, v)
}

func TestRemoveMember(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, []string{"fruits", "apple"}, map[string]any{"color": "red"}))
	require.NoError(t, e.Insert(ctx, []string{"fruits", "banana"}, map[string]any{"color": "yellow"}))

	require.NoError(t, e.Remove(ctx, []string{"fruits", "apple"}))

	v, err := e.Get(ctx, []string{"fruits"})
	require.NoError(t, err)
	record := v.(map[string]Value)
	require.NotContains(t, record, "apple")
	require.Contains(t, record, "banana")

	// The persisted membership set must not contain "apple" either.
	err = e.kv.View(ctx, func(tx kvstore.Tx) error {
		raw, ok, err := tx.Get(pathcodec.Encode([]string{"fruits"}))
		require.NoError(t, err)
		require.True(t, ok)
		members, err := decodeMembers(raw)
		require.NoError(t, err)
		require.NotContains(t, members, "apple")
		require.Contains(t, members, "banana")
		return nil
	})
	require.NoError(t, err)
}

func TestAbsentDocumentReadsNull(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	v, err := e.Get(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestAtomicInsertRollback(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Insert(ctx, []string{"hello"}, map[string]any{"world": "1", "new york": []string{}})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSchemaMismatch))

	v, err := e.Get(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Nil(t, v)

	err = e.kv.View(ctx, func(tx kvstore.Tx) error {
		_, ok, err := tx.Get(pathcodec.Encode([]string{"hello", "world"}))
		require.NoError(t, err)
		require.False(t, ok, "no stray key should exist under hello.world after a rolled-back insert")
		return nil
	})
	require.NoError(t, err)
}

// TestAbortedCollectionInsertDoesNotLeakMember guards against a rolled-back
// collection insert's partial membership edit surviving into a later,
// unrelated successful insert on the same collection.
func TestAbortedCollectionInsertDoesNotLeakMember(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Insert(ctx, []string{"fruits"}, map[string]any{
		"apple":  map[string]any{"color": "red"},
		"banana": map[string]any{"color": 123}, // scalar value must be a string
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSchemaMismatch))

	v, err := e.Get(ctx, []string{"fruits"})
	require.NoError(t, err)
	require.Equal(t, map[string]Value{}, v, "a fully rolled-back insert must leave the collection empty")

	require.NoError(t, e.Insert(ctx, []string{"fruits", "cherry"}, map[string]any{"color": "green"}))

	v, err = e.Get(ctx, []string{"fruits"})
	require.NoError(t, err)
	require.Equal(t, map[string]Value{
		"cherry": map[string]Value{"color": "green"},
	}, v, "apple must not reappear from a prior aborted insert")
}

func TestInsertOnScalarRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v", "new york": "w"}))

	err := e.Insert(ctx, []string{"hello", "world"}, "x")
	require.True(t, errors.Is(err, ErrNonDocumentInsert))
}

func TestInsertExtraKeyRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v", "new york": "w", "bogus": "x"})
	require.True(t, errors.Is(err, ErrExtraKeyFound))
}

func TestInsertMissingKeyRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v"})
	require.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestUpdateOnAbsentDocumentFails(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.Update(ctx, []string{"hello"}, map[string]any{"world": "v"})
	require.True(t, errors.Is(err, ErrKeyNotFound))

	v, err := e.Get(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestUpdatePartial(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v", "new york": "w"}))
	require.NoError(t, e.Update(ctx, []string{"hello"}, map[string]any{"world": "v2"}))

	v, err := e.Get(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Equal(t, map[string]Value{"world": "v2", "new york": "w"}, v)
}

func TestRemoveScalarThenGetKeyNotFound(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v", "new york": "w"}))
	require.NoError(t, e.Remove(ctx, []string{"hello", "world"}))

	_, err := e.Get(ctx, []string{"hello", "world"})
	require.True(t, errors.Is(err, ErrKeyNotFound))
}

func TestRemoveCollectionThenGetEmptyRecord(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, []string{"fruits", "apple"}, map[string]any{"color": "red"}))
	require.NoError(t, e.Remove(ctx, []string{"fruits"}))

	v, err := e.Get(ctx, []string{"fruits"})
	require.NoError(t, err)
	require.Equal(t, map[string]Value{}, v)
}

func TestUnknownFieldAndIllegalRefOnScalar(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Get(ctx, []string{"nonexistent"})
	require.True(t, errors.Is(err, ErrUnknownField))

	require.NoError(t, e.Insert(ctx, []string{"hello"}, map[string]any{"world": "v", "new york": "w"}))
	_, err = e.Get(ctx, []string{"hello", "world", "extra"})
	require.True(t, errors.Is(err, ErrIllegalRefOnScalar))
}
