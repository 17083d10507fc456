package notify

import (
	"testing"

	"github.com/zhouzirui/date-night/backend/internal/model/session"
)

func TestPublishReachesOnlyMatchingWatchers(t *testing.T) {
	hub := NewHub()

	a, cancelA := hub.Subscribe("a")
	defer cancelA()
	b, cancelB := hub.Subscribe("b")
	defer cancelB()

	hub.Publish(session.View{ID: "a", Status: session.StatusCompleted, Plan: "plan"})

	select {
	case view := <-a:
		if view.Plan != "plan" {
			t.Fatalf("unexpected plan %q", view.Plan)
		}
	default:
		t.Fatal("expected watcher a to receive the view")
	}

	select {
	case view := <-b:
		t.Fatalf("watcher b should not receive %+v", view)
	default:
	}
}

func TestCancelRemovesWatcher(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("a")
	if hub.Watchers("a") != 1 {
		t.Fatalf("expected one watcher")
	}

	cancel()
	cancel()
	if hub.Watchers("a") != 0 {
		t.Fatalf("expected no watchers after cancel")
	}

	hub.Publish(session.View{ID: "a"})
}

func TestPublishDoesNotBlockOnFullWatcher(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("a")
	defer cancel()

	hub.Publish(session.View{ID: "a", Plan: "one"})
	hub.Publish(session.View{ID: "a", Plan: "two"})
}
