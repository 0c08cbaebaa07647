package watch

import (
	"context"
	"testing"
	"time"
)

func TestSubscribeReplaysCurrentValue(t *testing.T) {
	v := NewValue(42)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Subscribe(ctx)
	select {
	case got := <-ch:
		if got != 42 {
			t.Errorf("expected replayed value 42, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no replayed value on subscribe")
	}
}

func TestSetNotifiesAllSubscribers(t *testing.T) {
	v := NewValue("a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1 := v.Subscribe(ctx)
	ch2 := v.Subscribe(ctx)
	<-ch1
	<-ch2

	v.Set("b")

	for i, ch := range []<-chan string{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "b" {
				t.Errorf("subscriber %d: expected %q, got %q", i, "b", got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never notified", i)
		}
	}
}

func TestSlowSubscriberSeesLatestOnly(t *testing.T) {
	v := NewValue(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := v.Subscribe(ctx)

	// Never drained in between: deliveries conflate.
	for i := 1; i <= 10; i++ {
		v.Set(i)
	}

	got := <-ch
	if got != 10 {
		t.Errorf("expected latest value 10, got %d", got)
	}
	if v.Get() != 10 {
		t.Errorf("Get: expected 10, got %d", v.Get())
	}
}

func TestUpdateAppliesFunction(t *testing.T) {
	v := NewValue([]string{"x"})
	v.Update(func(s []string) []string { return append(s, "y") })

	got := v.Get()
	if len(got) != 2 || got[1] != "y" {
		t.Errorf("unexpected value after Update: %v", got)
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	v := NewValue(1)

	ctx, cancel := context.WithCancel(context.Background())
	ch := v.Subscribe(ctx)
	<-ch

	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				// Sets after close must not panic.
				v.Set(2)
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
