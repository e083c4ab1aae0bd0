package progress

import (
	"testing"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe("game.1")
	defer sub.Close()

	stages := []Stage{
		StageStarted,
		StageGeneratingScenario,
		StageScenarioComplete,
		StageGeneratingPersonas,
		StagePersonaComplete,
		StageGeneratingImages,
		StageInitializingGame,
		StageComplete,
	}
	for i, stage := range stages {
		b.Publish("game.1", Event{GameID: "1", Stage: stage, Progress: i * 10, Message: "m"})
	}

	for i, want := range stages {
		got := <-sub.C
		if got.Stage != want {
			t.Fatalf("event %d: got stage %s, want %s", i, got.Stage, want)
		}
	}
}

func TestPublishIsolatesTopics(t *testing.T) {
	b := NewBroker()
	sub1 := b.Subscribe("game.1")
	defer sub1.Close()
	sub2 := b.Subscribe("game.2")
	defer sub2.Close()

	b.Publish("game.1", Event{GameID: "1", Stage: StageStarted, Message: "m"})

	if got := <-sub1.C; got.GameID != "1" {
		t.Errorf("unexpected event: %+v", got)
	}
	select {
	case e := <-sub2.C:
		t.Errorf("event leaked across topics: %+v", e)
	default:
	}
}

func TestLateSubscriberGetsNoBacklog(t *testing.T) {
	b := NewBroker()

	b.Publish("game.1", Event{GameID: "1", Stage: StageStarted, Message: "m"})

	sub := b.Subscribe("game.1")
	defer sub.Close()

	select {
	case e := <-sub.C:
		t.Errorf("late subscriber must not replay history, got %+v", e)
	default:
	}

	// Only events published after the subscription arrive.
	b.Publish("game.1", Event{GameID: "1", Stage: StageComplete, Progress: 100, Message: "done"})
	if got := <-sub.C; got.Stage != StageComplete {
		t.Errorf("expected complete event, got %+v", got)
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe("game.1")
	defer sub.Close()

	// Publish never blocks, even with no reader draining.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish("game.1", Event{GameID: "1", Stage: StageGeneratingPersonas, Progress: 50, Message: "m"})
	}

	received := 0
	for {
		select {
		case <-sub.C:
			received++
		default:
			if received != subscriberBuffer {
				t.Errorf("expected %d buffered events, got %d", subscriberBuffer, received)
			}
			return
		}
	}
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe("game.1")

	sub.Close()
	sub.Close()

	if n := b.SubscriberCount("game.1"); n != 0 {
		t.Errorf("expected 0 subscribers after close, got %d", n)
	}

	// Publishing to a topic with no subscribers is a no-op.
	b.Publish("game.1", Event{GameID: "1", Stage: StageStarted, Message: "m"})
}

func TestSubscriberCount(t *testing.T) {
	b := NewBroker()
	sub1 := b.Subscribe("game.1")
	sub2 := b.Subscribe("game.1")

	if n := b.SubscriberCount("game.1"); n != 2 {
		t.Errorf("expected 2 subscribers, got %d", n)
	}
	sub1.Close()
	if n := b.SubscriberCount("game.1"); n != 1 {
		t.Errorf("expected 1 subscriber, got %d", n)
	}
	sub2.Close()
	if n := b.SubscriberCount("game.1"); n != 0 {
		t.Errorf("expected 0 subscribers, got %d", n)
	}
}
