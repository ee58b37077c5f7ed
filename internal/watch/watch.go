// Package watch projects the raw key-value events produced by the
// storage layer's prefix-watch primitive into path-typed document
// events, decoding each physical key back into the logical path it
// encodes.
package watch

import (
	"fmt"

	"github.com/agentic-research/pathstore/internal/kvstore"
	"github.com/agentic-research/pathstore/internal/pathcodec"
)

// Event is a single projected change under a subscribed path.
type Event struct {
	// Path is the decoded logical path the change occurred at.
	Path []string
	// Value is the raw value written at Path, for an insert: a scalar's
	// string, a Document's presence byte, or a Collection's encoded
	// membership set. Empty and meaningless for a Remove event (Removed
	// is true).
	Value   string
	Removed bool
}

// Subscription is a live, path-typed view of a kvstore.Subscription.
// Closing it cancels the underlying raw watch.
type Subscription struct {
	Events <-chan Event
	Errors <-chan error
	raw    *kvstore.Subscription
}

// Close cancels the subscription.
func (s *Subscription) Close() {
	s.raw.Close()
}

// Subscribe wraps kv's prefix-watch at path, decoding every raw event
// into a path-typed Event. The projector never filters: any child
// mutation under path is surfaced, including collection-index writes —
// callers that want leaf-only events must filter on Path length or on
// the schema themselves (see §9 of the design notes on subscription
// noise).
func Subscribe(kv kvstore.KV, path []string) *Subscription {
	raw := kv.Watch(pathcodec.Encode(path))

	events := make(chan Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		for rawEvent := range raw.Events {
			decoded, err := pathcodec.Decode(rawEvent.Key)
			if err != nil {
				select {
				case errs <- fmt.Errorf("decode subscription key: %w", err):
				default:
				}
				return
			}
			e := Event{Path: decoded, Removed: rawEvent.Removed}
			if !rawEvent.Removed {
				e.Value = string(rawEvent.Value)
			}
			events <- e
		}
	}()

	return &Subscription{Events: events, Errors: errs, raw: raw}
}
