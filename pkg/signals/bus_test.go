package signals

import (
	"context"
	"errors"
	"testing"

	"github.com/mintlaunch/launchindex/pkg/contracts"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	log, err := logging.NewColoredLogger(logging.ComponentSignals, false)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return NewBus(log)
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var got []string
	for _, tag := range []string{"first", "second", "third"} {
		tag := tag
		if _, err := b.Subscribe(ctx, "topic", func(topic string, data []byte) error {
			got = append(got, tag)
			return nil
		}); err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	if err := b.Publish(ctx, "topic", []byte(`{}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestHandlerErrorDoesNotStopDelivery(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var secondRan bool
	if _, err := b.Subscribe(ctx, "topic", func(string, []byte) error {
		return errors.New("handler broke")
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := b.Subscribe(ctx, "topic", func(string, []byte) error {
		secondRan = true
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := b.Publish(ctx, "topic", nil); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !secondRan {
		t.Error("a failing handler must not block later handlers")
	}
}

func TestUnsubscribeDetachesOnlyThatHandler(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	var aCount, bCount int
	idA, err := b.Subscribe(ctx, "topic", func(string, []byte) error {
		aCount++
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := b.Subscribe(ctx, "topic", func(string, []byte) error {
		bCount++
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := b.Unsubscribe(ctx, "topic", idA); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := b.Publish(ctx, "topic", nil); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if aCount != 0 || bCount != 1 {
		t.Errorf("expected only the remaining handler to fire, got a=%d b=%d", aCount, bCount)
	}
}

func TestUnsubscribeUnknownIsNoop(t *testing.T) {
	b := newTestBus(t)
	if err := b.Unsubscribe(context.Background(), "nope", contracts.HandlerID("missing")); err != nil {
		t.Errorf("Unsubscribe on unknown topic should be a no-op, got: %v", err)
	}
}

func TestClosedBusRejectsUse(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := b.Subscribe(ctx, "topic", func(string, []byte) error { return nil }); !errors.Is(err, contracts.ErrBusClosed) {
		t.Errorf("expected ErrBusClosed from Subscribe, got %v", err)
	}
	if err := b.Publish(ctx, "topic", nil); !errors.Is(err, contracts.ErrBusClosed) {
		t.Errorf("expected ErrBusClosed from Publish, got %v", err)
	}
}
