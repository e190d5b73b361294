package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/store"
	"github.com/echoroom/echoroom-server/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// newTestStore opens an in-memory database with the production schema;
// the default mood rooms are seeded, so room 1 always exists.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	logger := zerolog.Nop()
	return NewHub(newTestStore(t), &logger)
}
