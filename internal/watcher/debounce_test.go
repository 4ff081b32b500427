package watcher

import (
	"testing"
	"time"
)

func drain(t *testing.T, d *debouncer, want int, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for len(got) < want {
		select {
		case ev := <-d.out:
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d: %v", want, len(got), got)
		}
	}
	return got
}

func TestDebouncerCoalescesRepeatedEventsOnSamePath(t *testing.T) {
	d := newDebouncer(20, 50)
	go d.run()
	defer d.close()

	d.feed("a.go", Modified)
	d.feed("a.go", Modified)
	d.feed("a.go", Modified)

	got := drain(t, d, 1, 500*time.Millisecond)
	if got[0].Path != "a.go" || got[0].Kind != Modified {
		t.Errorf("got %+v", got[0])
	}

	select {
	case extra := <-d.out:
		t.Errorf("expected exactly one coalesced event, got an extra: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerLastKindWinsForSamePath(t *testing.T) {
	d := newDebouncer(20, 50)
	go d.run()
	defer d.close()

	d.feed("a.go", Created)
	d.feed("a.go", Modified)
	d.feed("a.go", Deleted)

	got := drain(t, d, 1, 500*time.Millisecond)
	if got[0].Kind != Deleted {
		t.Errorf("Kind = %v, want Deleted (last event wins)", got[0].Kind)
	}
}

func TestDebouncerEmitsSeparateEventsForDistinctPaths(t *testing.T) {
	d := newDebouncer(20, 50)
	go d.run()
	defer d.close()

	d.feed("a.go", Modified)
	d.feed("b.go", Created)

	got := drain(t, d, 2, 500*time.Millisecond)
	seen := map[string]bool{}
	for _, ev := range got {
		seen[ev.Path] = true
	}
	if !seen["a.go"] || !seen["b.go"] {
		t.Errorf("expected events for both a.go and b.go, got %v", got)
	}
}

func TestDebouncerCloseFlushesPendingAndClosesOut(t *testing.T) {
	d := newDebouncer(5000, 50) // window much longer than the test timeout
	go d.run()

	d.feed("a.go", Modified)
	d.close()

	got := drain(t, d, 1, 500*time.Millisecond)
	if got[0].Path != "a.go" {
		t.Errorf("got %+v", got[0])
	}

	select {
	case _, ok := <-d.out:
		if ok {
			t.Error("expected out channel to be closed after close()")
		}
	case <-time.After(200 * time.Millisecond):
		t.Error("out channel did not close after close()")
	}
}

func TestNewDebouncerAppliesDefaults(t *testing.T) {
	d := newDebouncer(0, 0)
	if d.baseMs != 200 {
		t.Errorf("baseMs = %d, want default 200", d.baseMs)
	}
	if d.threshold != 50 {
		t.Errorf("threshold = %d, want default 50", d.threshold)
	}
}
