package events

import (
	"sync"
	"testing"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	e := New()

	var got []string
	e.On("chat.restored", func(payload interface{}) {
		got = append(got, payload.(string))
	})

	e.Emit("chat.restored", "first")
	e.Emit("chat.restored", "second")

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("unexpected deliveries: %v", got)
	}
}

func TestEmitUnknownEventIsNoop(t *testing.T) {
	e := New()
	e.Emit("nobody.listens", 42)
}

func TestDeliveryOrderFollowsRegistration(t *testing.T) {
	e := New()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		e.On("evt", func(interface{}) { order = append(order, i) })
	}

	e.Emit("evt", nil)

	for i, v := range order {
		if v != i {
			t.Fatalf("handlers ran out of order: %v", order)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	e := New()

	calls := 0
	off := e.On("evt", func(interface{}) { calls++ })

	e.Emit("evt", nil)
	off()
	off() // second call must be a no-op
	e.Emit("evt", nil)

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}
	if e.SubscriberCount("evt") != 0 {
		t.Errorf("expected 0 subscribers, got %d", e.SubscriberCount("evt"))
	}
}

func TestConcurrentSubscribeEmit(t *testing.T) {
	e := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				off := e.On("evt", func(interface{}) {})
				e.Emit("evt", nil)
				off()
			}
		}()
	}
	wg.Wait()
}
