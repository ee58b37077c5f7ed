package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentic-research/pathstore/internal/engine"
	"github.com/agentic-research/pathstore/internal/kvstore"
	"github.com/agentic-research/pathstore/schema"
)

func TestSubscriptionObservesCommits(t *testing.T) {
	kv, err := kvstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	root := schema.Document(map[string]*schema.Node{
		"hello": schema.Document(map[string]*schema.Node{
			"world": schema.Scalar(),
		}),
	})
	e := engine.New(kv, root)
	ctx := context.Background()

	require.NoError(t, e.Insert(ctx, []string{"hello"}, map[string]any{"world": "init"}))

	sub := Subscribe(kv, []string{"hello", "world"})
	defer sub.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Update(ctx, []string{"hello", "world"}, fmtInt(i)))
	}

	var got []Event
	for i := 0; i < 5; i++ {
		select {
		case ev := <-sub.Events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", i)
		}
	}

	require.Len(t, got, 5)
	for i, ev := range got {
		require.Equal(t, []string{"hello", "world"}, ev.Path)
		require.False(t, ev.Removed)
		require.Equal(t, fmtInt(i), ev.Value)
	}
}

func fmtInt(i int) string {
	return string(rune('0' + i))
}
