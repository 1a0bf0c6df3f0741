package runtime

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelnode/kestrel/telemetry"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	return NewRoot("test", telemetry.NewRegistry(), zerolog.Nop())
}

func TestLoggerCarriesLabelPath(t *testing.T) {
	var buf bytes.Buffer
	root := NewRoot("test", telemetry.NewRegistry(), zerolog.New(&buf))
	child := root.WithLabel("exec")

	child.Logger().Info().Msg("actor started")

	line := buf.String()
	if !strings.Contains(line, "test.exec") {
		t.Errorf("log line missing label path: %s", line)
	}
	if !strings.Contains(line, "actor started") {
		t.Errorf("log line missing message: %s", line)
	}
}

func TestWithLabelPath(t *testing.T) {
	root := newTestContext(t)

	child := root.WithLabel("consensus")
	if child.Path() != "test.consensus" {
		t.Errorf("expected path 'test.consensus', got %q", child.Path())
	}

	grandchild := child.WithLabel("aggregator")
	if grandchild.Path() != "test.consensus.aggregator" {
		t.Errorf("expected path 'test.consensus.aggregator', got %q", grandchild.Path())
	}
}

func TestWithLabelCollision(t *testing.T) {
	root := newTestContext(t)

	first := root.WithLabel("worker")
	second := root.WithLabel("worker")

	if first.Path() == second.Path() {
		t.Fatalf("sibling paths merged: %q", first.Path())
	}

	// Metrics registered by the two siblings must stay distinct entries.
	c1, err := first.Counter("events")
	if err != nil {
		t.Fatalf("failed to register counter: %v", err)
	}
	c2, err := second.Counter("events")
	if err != nil {
		t.Fatalf("failed to register sibling counter: %v", err)
	}
	c1.Inc()
	c1.Inc()
	c2.Inc()

	snap, err := root.Registry().Snapshot()
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap[first.Path()+"/events"] != 2 {
		t.Errorf("expected 2 events under %s, got %v", first.Path(), snap[first.Path()+"/events"])
	}
	if snap[second.Path()+"/events"] != 1 {
		t.Errorf("expected 1 event under %s, got %v", second.Path(), snap[second.Path()+"/events"])
	}
}

func TestMetricRegistrationIdempotent(t *testing.T) {
	root := newTestContext(t)

	a, err := root.Counter("submitted")
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	b, err := root.Counter("submitted")
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if a != b {
		t.Error("same name+kind registration returned a different collector")
	}

	if _, err := root.Gauge("submitted"); err == nil {
		t.Error("expected kind conflict error, got nil")
	}
}

func TestCancelPropagates(t *testing.T) {
	root := newTestContext(t)
	child := root.WithLabel("a")
	grandchild := child.WithLabel("b")

	root.Cancel()

	select {
	case <-grandchild.Done():
	case <-time.After(time.Second):
		t.Fatal("grandchild did not observe root cancellation")
	}
	if grandchild.Err() == nil {
		t.Error("expected non-nil Err after cancellation")
	}
}

func TestSpawnContainedFault(t *testing.T) {
	root := newTestContext(t)

	sibling := root.Spawn("sibling", Contained, func(rc *Context) error {
		<-rc.Done()
		return nil
	})

	faulty := root.Spawn("faulty", Contained, func(rc *Context) error {
		panic("boom")
	})

	err := faulty.Wait(context.Background())
	var fault *SpawnFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected *SpawnFault, got %v", err)
	}
	if fault.Value != "boom" {
		t.Errorf("expected panic value 'boom', got %v", fault.Value)
	}
	if len(fault.Stack) == 0 {
		t.Error("expected captured stack")
	}

	// The contained fault must not take the sibling down.
	select {
	case <-sibling.Done():
		t.Fatal("sibling terminated by contained fault")
	case <-time.After(50 * time.Millisecond):
	}

	root.Cancel()
	if err := sibling.Wait(context.Background()); err != nil {
		t.Errorf("sibling failed: %v", err)
	}
}

func TestSpawnFatalFaultCancelsRoot(t *testing.T) {
	root := newTestContext(t)

	handle := root.Spawn("critical", Fatal, func(rc *Context) error {
		panic("unrecoverable")
	})

	if err := handle.Wait(context.Background()); err == nil {
		t.Fatal("expected fault from handle")
	}

	select {
	case <-root.Done():
	case <-time.After(time.Second):
		t.Fatal("fatal fault did not cancel the root")
	}
}

func TestSpawnAnonymousLabels(t *testing.T) {
	root := newTestContext(t)

	h1 := root.Spawn("", Contained, func(rc *Context) error { return nil })
	h2 := root.Spawn("", Contained, func(rc *Context) error { return nil })

	if h1.Path() == h2.Path() {
		t.Errorf("anonymous spawns share the path %q", h1.Path())
	}
}

func TestTaskHandleErrBeforeCompletion(t *testing.T) {
	root := newTestContext(t)

	release := make(chan struct{})
	handle := root.Spawn("slow", Contained, func(rc *Context) error {
		<-release
		return nil
	})

	if err := handle.Err(); err != nil {
		t.Errorf("expected nil Err before completion, got %v", err)
	}
	close(release)

	if err := handle.Wait(context.Background()); err != nil {
		t.Errorf("expected nil result, got %v", err)
	}
}
