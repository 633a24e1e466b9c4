package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// frame is one parsed "event: ...\ndata: ...\n\n" message.
type frame struct {
	typ  string
	data string
}

func parseFrame(t *testing.T, raw []byte) frame {
	t.Helper()
	var f frame
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			f.typ = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
	return f
}

// next waits for one frame on ch.
func next(t *testing.T, ch chan []byte) frame {
	t.Helper()
	select {
	case raw := <-ch:
		return parseFrame(t, raw)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return frame{}
	}
}

// drain returns every frame already queued on ch after a short pause.
func drain(t *testing.T, ch chan []byte) []frame {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	var out []frame
	for {
		select {
		case raw := <-ch:
			out = append(out, parseFrame(t, raw))
		default:
			return out
		}
	}
}

func TestArchiveChangeTypes(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishArchiveChange(ArchiveChange{Kind: "created", Path: "Akira/v01.cbz", Status: "missing"})
	b.PublishArchiveChange(ArchiveChange{Kind: "updated", Path: "Akira/v01.cbz", Status: "ok"})
	b.PublishArchiveChange(ArchiveChange{Kind: "deleted", Path: "Akira/v01.cbz"})
	b.PublishArchiveChange(ArchiveChange{Kind: "renamed", Path: "ignored.cbz"})

	var types []string
	for _, f := range drain(t, ch) {
		types = append(types, f.typ)
		if strings.Contains(f.data, "ignored.cbz") {
			t.Errorf("unknown kind broadcast: %s", f.data)
		}
	}
	want := []string{TypeArchiveCreated, TypeLibraryUpdated, TypeArchiveUpdated, TypeArchiveDeleted}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("types = %v, want %v", types, want)
	}
}

func TestArchiveChangePayload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishArchiveChange(ArchiveChange{Kind: "created", Path: "S/S v02.cbr", Status: "wrong"})
	f := next(t, ch)

	var got map[string]any
	if err := json.Unmarshal([]byte(f.data), &got); err != nil {
		t.Fatalf("data %q: %v", f.data, err)
	}
	if got["path"] != "S/S v02.cbr" || got["status"] != "wrong" {
		t.Errorf("payload = %v", got)
	}
	if _, ok := got["kind"]; ok {
		t.Error("kind leaked into payload")
	}
}

func TestLibraryUpdatedThrottle(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	count := func(frames []frame) int {
		n := 0
		for _, f := range frames {
			if f.typ == TypeLibraryUpdated {
				n++
			}
		}
		return n
	}

	b.PublishArchiveChange(ArchiveChange{Kind: "created", Path: "a.cbz"})
	b.PublishArchiveChange(ArchiveChange{Kind: "created", Path: "b.cbz"})
	b.PublishArchiveChange(ArchiveChange{Kind: "created", Path: "c.cbz"})
	if n := count(drain(t, ch)); n != 1 {
		t.Errorf("library.updated within window = %d, want 1", n)
	}

	time.Sleep(250 * time.Millisecond)
	b.PublishArchiveChange(ArchiveChange{Kind: "deleted", Path: "a.cbz"})
	if n := count(drain(t, ch)); n != 1 {
		t.Errorf("library.updated after window = %d, want 1", n)
	}
}

func TestRepairEventsFanOut(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	first := b.Subscribe()
	defer b.Unsubscribe(first)
	second := b.Subscribe()
	defer b.Unsubscribe(second)

	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}

	b.Publish(Event{Type: TypeRepairFinished, Data: map[string]any{"dir": "Akira", "attempted": 2, "failed": 0}})
	for _, ch := range []chan []byte{first, second} {
		f := next(t, ch)
		if f.typ != TypeRepairFinished || !strings.Contains(f.data, `"attempted":2`) {
			t.Errorf("frame = %+v", f)
		}
	}
}

func TestSlowSubscriberDoesNotStallOthers(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	stalled := b.Subscribe()
	defer b.Unsubscribe(stalled)

	// The stalled client never reads; its buffer fills and the rest is dropped.
	for i := 0; i < cap(stalled)+6; i++ {
		b.Publish(Event{Type: TypeRepairFile, Data: map[string]int{"i": i}})
	}
	deadline := time.Now().Add(time.Second)
	for len(stalled) < cap(stalled) {
		if time.Now().After(deadline) {
			t.Fatalf("stalled buffer = %d, want %d", len(stalled), cap(stalled))
		}
		time.Sleep(5 * time.Millisecond)
	}

	live := b.Subscribe()
	defer b.Unsubscribe(live)
	b.Publish(Event{Type: TypeRepairStarted, Data: map[string]string{"dir": ""}})
	// Queued repair.file events may still reach the new client first.
	for {
		if f := next(t, live); f.typ == TypeRepairStarted {
			return
		}
	}
}

func TestServeHTTPStreamsUntilDisconnect(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.PublishArchiveChange(ArchiveChange{Kind: "updated", Path: "x.cbz", Status: "ok"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: archive.updated") || !strings.Contains(body, "event: library.updated") {
		t.Errorf("stream = %q", body)
	}
	if b.ClientCount() != 0 {
		t.Error("client not removed after disconnect")
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	// Publishing and subscribing after Close must not block.
	b.Publish(Event{Type: TypeRepairFinished})
	b.PublishArchiveChange(ArchiveChange{Kind: "updated", Path: "x.cbz"})
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscription after close should be closed")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients after close = %d", n)
	}
}
