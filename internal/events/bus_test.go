package events

import "testing"

func TestPublishReachesTopicSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	diag := bus.Subscribe(TopicDiagnostics, 4)
	other := bus.Subscribe(TopicPacks, 4)
	all := bus.SubscribeAll(4)

	bus.Publish(TopicDiagnostics, DiagnosticsUpdated{Files: []string{"a.rb"}})

	select {
	case ev := <-diag:
		upd, ok := ev.Payload.(DiagnosticsUpdated)
		if !ok || len(upd.Files) != 1 {
			t.Errorf("payload = %#v", ev.Payload)
		}
	default:
		t.Error("topic subscriber did not receive the event")
	}

	select {
	case <-other:
		t.Error("event leaked to an unrelated topic")
	default:
	}

	select {
	case ev := <-all:
		if ev.Topic != TopicDiagnostics {
			t.Errorf("topic = %q", ev.Topic)
		}
	default:
		t.Error("SubscribeAll did not receive the event")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicPacks, 1)
	bus.Publish(TopicPacks, PacksChanged{Paths: []string{"one"}})
	// Buffer full; must not block.
	bus.Publish(TopicPacks, PacksChanged{Paths: []string{"two"}})

	ev := <-ch
	if got := ev.Payload.(PacksChanged).Paths[0]; got != "one" {
		t.Errorf("payload = %q, want the first event", got)
	}
	select {
	case <-ch:
		t.Error("second event should have been dropped")
	default:
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TopicConfig, 1)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("subscriber channel should be closed")
	}

	// Publishing after close must not panic.
	bus.Publish(TopicConfig, ConfigChanged{})
}
