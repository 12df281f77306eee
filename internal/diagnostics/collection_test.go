package diagnostics

import (
	"sort"
	"testing"

	"packls/internal/events"
)

func diag(file string, line int) Diagnostic {
	return Diagnostic{
		File:     file,
		Range:    Range{Start: Position{Line: line}, End: Position{Line: line}},
		Severity: SeverityWarning,
		Source:   SourceCheck,
		Message:  "violation",
	}
}

func receiveUpdate(t *testing.T, ch <-chan events.Event) events.DiagnosticsUpdated {
	t.Helper()
	select {
	case ev := <-ch:
		upd, ok := ev.Payload.(events.DiagnosticsUpdated)
		if !ok {
			t.Fatalf("payload = %T, want DiagnosticsUpdated", ev.Payload)
		}
		return upd
	default:
		t.Fatal("no event published")
	}
	return events.DiagnosticsUpdated{}
}

func TestReplaceAllClearsAbsentFiles(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := bus.Subscribe(events.TopicDiagnostics, 8)

	c := NewCollection(bus)
	c.ReplaceAll(map[string][]Diagnostic{
		"a.rb": {diag("a.rb", 1)},
		"b.rb": {diag("b.rb", 2)},
	})
	receiveUpdate(t, ch)

	c.ReplaceAll(map[string][]Diagnostic{
		"b.rb": {diag("b.rb", 3)},
	})
	upd := receiveUpdate(t, ch)

	// The cleared file must appear in the change set so its markers are
	// retracted.
	sort.Strings(upd.Files)
	if len(upd.Files) != 2 || upd.Files[0] != "a.rb" || upd.Files[1] != "b.rb" {
		t.Errorf("changed files = %v, want [a.rb b.rb]", upd.Files)
	}

	if got := c.Get("a.rb"); len(got) != 0 {
		t.Errorf("a.rb diagnostics = %d, want 0", len(got))
	}
	if got := c.Get("b.rb"); len(got) != 1 || got[0].Range.Start.Line != 3 {
		t.Errorf("b.rb not replaced: %+v", got)
	}
}

func TestReplaceFileOnlyTouchesThatFile(t *testing.T) {
	c := NewCollection(nil)
	c.ReplaceAll(map[string][]Diagnostic{
		"a.rb": {diag("a.rb", 1)},
		"b.rb": {diag("b.rb", 2)},
	})

	c.ReplaceFile("a.rb", []Diagnostic{diag("a.rb", 9)})
	if got := c.Get("a.rb"); len(got) != 1 || got[0].Range.Start.Line != 9 {
		t.Errorf("a.rb not replaced: %+v", got)
	}
	if got := c.Get("b.rb"); len(got) != 1 {
		t.Error("ReplaceFile must not disturb other files")
	}

	c.ReplaceFile("a.rb", nil)
	if got := c.Get("a.rb"); len(got) != 0 {
		t.Error("empty replace should clear the file")
	}
	if c.Count() != 1 {
		t.Errorf("Count = %d, want 1", c.Count())
	}
}

func TestClearEmptiesEverything(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch := bus.Subscribe(events.TopicDiagnostics, 8)

	c := NewCollection(bus)
	c.ReplaceAll(map[string][]Diagnostic{"a.rb": {diag("a.rb", 1)}})
	receiveUpdate(t, ch)

	c.Clear()
	upd := receiveUpdate(t, ch)
	if len(upd.Files) != 1 || upd.Files[0] != "a.rb" {
		t.Errorf("changed files = %v, want [a.rb]", upd.Files)
	}
	if c.Count() != 0 {
		t.Errorf("Count = %d, want 0", c.Count())
	}
	if len(c.Files()) != 0 {
		t.Errorf("Files = %v, want empty", c.Files())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := NewCollection(nil)
	c.ReplaceFile("a.rb", []Diagnostic{diag("a.rb", 1)})

	got := c.Get("a.rb")
	got[0].Message = "mutated"

	if c.Get("a.rb")[0].Message == "mutated" {
		t.Error("Get must return a copy, not the backing slice")
	}
}
