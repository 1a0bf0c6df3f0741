package runtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// recordBehavior collects every message it handles.
type recordBehavior struct {
	mu       sync.Mutex
	messages []int
	inited   bool
	closed   bool

	// handleDelay simulates a slow in-flight message when set.
	handleDelay time.Duration

	// failOn returns an error for matching messages when set.
	failOn func(int) bool
}

func (b *recordBehavior) Init(rc *Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inited = true
	return nil
}

func (b *recordBehavior) HandleMessage(rc *Context, msg int) error {
	if b.handleDelay > 0 {
		time.Sleep(b.handleDelay)
	}
	if b.failOn != nil && b.failOn(msg) {
		return fmt.Errorf("rejected message %d", msg)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordBehavior) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *recordBehavior) recorded() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.messages))
	copy(out, b.messages)
	return out
}

func TestActorLifecycle(t *testing.T) {
	root := newTestContext(t)
	behavior := &recordBehavior{}
	actor := NewActor("recorder", behavior, NewMailbox[int](8, Block))

	if actor.State() != StateCreated {
		t.Errorf("expected created state, got %s", actor.State())
	}

	handle := root.Spawn(actor.Name(), Contained, actor.Run)
	sender := actor.Sender()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := sender.Send(ctx, i); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}

	waitFor(t, func() bool { return actor.Processed() == 5 })
	if actor.State() != StateRunning {
		t.Errorf("expected running state, got %s", actor.State())
	}

	root.Cancel()
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("actor run failed: %v", err)
	}

	if actor.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", actor.State())
	}
	if !behavior.closed {
		t.Error("behavior resources were not released")
	}
	got := behavior.recorded()
	for i, v := range got {
		if v != i {
			t.Fatalf("messages out of order: %v", got)
		}
	}

	// The dropped receiver must propagate close to senders.
	if err := sender.Send(ctx, 99); err == nil {
		t.Error("expected send to a stopped actor to fail")
	}
}

func TestActorFinishesInFlightMessageOnCancel(t *testing.T) {
	root := newTestContext(t)
	behavior := &recordBehavior{handleDelay: 100 * time.Millisecond}
	actor := NewActor("slow", behavior, NewMailbox[int](4, Block))

	handle := root.Spawn(actor.Name(), Contained, actor.Run)
	if err := actor.Sender().Send(context.Background(), 42); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// Cancel while the message is mid-processing.
	time.Sleep(20 * time.Millisecond)
	root.Cancel()

	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("actor run failed: %v", err)
	}

	got := behavior.recorded()
	if len(got) != 1 || got[0] != 42 {
		t.Errorf("in-flight message was not completed: %v", got)
	}
}

func TestActorHandlerErrorIsLocal(t *testing.T) {
	root := newTestContext(t)
	behavior := &recordBehavior{failOn: func(msg int) bool { return msg == 1 }}
	actor := NewActor("flaky", behavior, NewMailbox[int](8, Block))

	handle := root.Spawn(actor.Name(), Contained, actor.Run)
	sender := actor.Sender()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := sender.Send(ctx, i); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}

	waitFor(t, func() bool { return actor.Processed() == 3 })

	got := behavior.recorded()
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("expected loop to continue past the failed message, got %v", got)
	}

	root.Cancel()
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("actor run failed: %v", err)
	}
}

// failingInitBehavior never reaches Running.
type failingInitBehavior struct {
	recordBehavior
}

func (b *failingInitBehavior) Init(rc *Context) error {
	return fmt.Errorf("storage handle unavailable")
}

func TestActorInitFailure(t *testing.T) {
	root := newTestContext(t)
	actor := NewActor("broken", &failingInitBehavior{}, NewMailbox[int](4, Block))

	handle := root.Spawn(actor.Name(), Contained, actor.Run)
	if err := handle.Wait(context.Background()); err == nil {
		t.Fatal("expected initialization failure")
	}
	if actor.State() != StateStopped {
		t.Errorf("expected stopped state after init failure, got %s", actor.State())
	}
}

func TestActorRunTwice(t *testing.T) {
	root := newTestContext(t)
	actor := NewActor("once", &recordBehavior{}, NewMailbox[int](4, Block))

	root.Spawn(actor.Name(), Contained, actor.Run)
	waitFor(t, func() bool { return actor.State() == StateRunning })

	if err := actor.Run(root.WithLabel("again")); err == nil {
		t.Error("expected second Run to fail")
	}
	root.Cancel()
}

// tickBehavior counts timer expiries.
type tickBehavior struct {
	recordBehavior
	mu    sync.Mutex
	ticks int
}

func (b *tickBehavior) TickInterval() time.Duration {
	return 10 * time.Millisecond
}

func (b *tickBehavior) Tick(rc *Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ticks++
	return nil
}

func (b *tickBehavior) tickCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ticks
}

func TestActorPeriodicTick(t *testing.T) {
	root := newTestContext(t)
	behavior := &tickBehavior{}
	actor := NewActor("ticker", behavior, NewMailbox[int](4, Block))

	handle := root.Spawn(actor.Name(), Contained, actor.Run)
	waitFor(t, func() bool { return behavior.tickCount() >= 3 })

	root.Cancel()
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("actor run failed: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
