package logging_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"spellcast/server/logging"
	"spellcast/server/logging/sinks"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close router: %v", err)
	}
}

func TestRouterDeliversToEverySink(t *testing.T) {
	first := sinks.NewMemory()
	second := sinks.NewMemory()
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"node": "a"}
	router := logging.NewRouter(cfg, fixedClock{now: stamp}, log.New(&bytes.Buffer{}, "", 0),
		logging.NamedSink{Name: "first", Sink: first},
		logging.NamedSink{Name: "second", Sink: second},
	)

	router.Publish(context.Background(), logging.Event{Type: "cast.started", Severity: logging.SeverityInfo, Extra: map[string]any{"node": "override"}})
	closeRouter(t, router)

	for name, sink := range map[string]*sinks.Memory{"first": first, "second": second} {
		events := sink.Events()
		if len(events) != 1 {
			t.Fatalf("%s: expected 1 event, got %d", name, len(events))
		}
		if !events[0].Time.Equal(stamp) {
			t.Fatalf("%s: expected clock time to be stamped, got %v", name, events[0].Time)
		}
		if events[0].Extra["node"] != "override" {
			t.Fatalf("%s: expected event field to win over router field, got %v", name, events[0].Extra["node"])
		}
	}
	if got := router.Stats().EventsTotal; got != 1 {
		t.Fatalf("expected 1 routed event, got %d", got)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	memory := sinks.NewMemory()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router := logging.NewRouter(cfg, nil, log.New(&bytes.Buffer{}, "", 0), logging.NamedSink{Name: "memory", Sink: memory})

	router.Publish(context.Background(), logging.Event{Type: "cast.step", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "cast.step_fault", Severity: logging.SeverityError})
	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 1 || events[0].Type != "cast.step_fault" {
		t.Fatalf("expected only the error event, got %+v", events)
	}
	if got := router.Stats().FilteredTotal; got != 1 {
		t.Fatalf("expected 1 filtered event, got %d", got)
	}
}

type blockingSink struct {
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) Write(logging.Event) error {
	<-s.release
	return nil
}

func (s *blockingSink) Close(context.Context) error {
	s.once.Do(func() { close(s.release) })
	return nil
}

func TestRouterDropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	cfg := logging.DefaultConfig()
	cfg.BufferSize = 1
	router := logging.NewRouter(cfg, nil, log.New(&bytes.Buffer{}, "", 0), logging.NamedSink{Name: "slow", Sink: sink})

	for i := 0; i < 500; i++ {
		router.Publish(context.Background(), logging.Event{Type: "cast.step", Severity: logging.SeverityInfo})
	}
	stats := router.Stats()
	if stats.DroppedTotal == 0 && stats.SinkDrops["slow"] == 0 {
		t.Fatalf("expected drops with a blocked sink, got %+v", stats)
	}
	close(sink.release)
	sink.once.Do(func() {})
	closeRouter(t, router)
}

type failingSink struct{ writes int }

func (s *failingSink) Write(logging.Event) error {
	s.writes++
	return errors.New("disk full")
}

func (s *failingSink) Close(context.Context) error { return nil }

func TestRouterCountsSinkFailures(t *testing.T) {
	sink := &failingSink{}
	var fallback bytes.Buffer
	router := logging.NewRouter(logging.DefaultConfig(), nil, log.New(&fallback, "", 0), logging.NamedSink{Name: "broken", Sink: sink})
	router.Publish(context.Background(), logging.Event{Type: "cast.completed", Severity: logging.SeverityInfo})
	closeRouter(t, router)

	if got := router.Stats().SinkFailures["broken"]; got != 1 {
		t.Fatalf("expected 1 sink failure, got %d", got)
	}
	if !bytes.Contains(fallback.Bytes(), []byte("disk full")) {
		t.Fatalf("expected failure on fallback logger, got %q", fallback.String())
	}
}

func TestRouterCloseTwice(t *testing.T) {
	router := logging.NewRouter(logging.DefaultConfig(), nil, nil)
	closeRouter(t, router)
	if err := router.Close(context.Background()); !errors.Is(err, logging.ErrRouterClosed) {
		t.Fatalf("expected ErrRouterClosed, got %v", err)
	}
	router.Publish(context.Background(), logging.Event{Type: "ignored"})
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		"":        logging.SeverityInfo,
		"WARNING": logging.SeverityWarn,
		" error ": logging.SeverityError,
	}
	for raw, want := range cases {
		got, err := logging.ParseSeverity(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %v, got %v", raw, want, got)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestWithFields(t *testing.T) {
	memory := sinks.NewMemory()
	pub := logging.WithFields(memory, map[string]any{"caster": "u1"})
	pub.Publish(context.Background(), logging.Event{Type: "cast.started"})
	pub.Publish(context.Background(), logging.Event{Type: "cast.step", Extra: map[string]any{"caster": "u2"}})

	events := memory.Events()
	if events[0].Extra["caster"] != "u1" || events[1].Extra["caster"] != "u2" {
		t.Fatalf("unexpected extras %+v / %+v", events[0].Extra, events[1].Extra)
	}
	if logging.WithFields(nil, nil) == nil {
		t.Fatalf("expected a publisher for nil input")
	}
}
