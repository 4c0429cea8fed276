package queue

import (
	"errors"
	"testing"
)

func newTestStore(t *testing.T, items ...Item) *Store {
	t.Helper()
	s := NewStore()
	for _, item := range items {
		if _, err := s.Insert(item); err != nil {
			t.Fatalf("Insert(%q) error = %v", item.ID, err)
		}
	}
	return s
}

func TestInsertDuplicateID(t *testing.T) {
	s := newTestStore(t, Item{ID: "abc", Title: "First", State: StateWaiting})

	_, err := s.Insert(Item{ID: "abc", Title: "Second", State: StateWaiting})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("Insert duplicate error = %v; want ErrDuplicateID", err)
	}

	items := s.List()
	if len(items) != 1 {
		t.Fatalf("List() length = %d; want 1", len(items))
	}
	if items[0].Title != "First" {
		t.Errorf("duplicate insert modified queue: title = %q", items[0].Title)
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	s := newTestStore(t,
		Item{ID: "c", State: StateWaiting},
		Item{ID: "a", State: StateWaiting},
		Item{ID: "b", State: StateWaiting},
	)

	want := []string{"c", "a", "b"}
	items := s.List()
	if len(items) != len(want) {
		t.Fatalf("List() length = %d; want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("List()[%d].ID = %q; want %q", i, items[i].ID, id)
		}
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := newTestStore(t, Item{ID: "a", Title: "Original", State: StateWaiting})

	items := s.List()
	items[0].Title = "Mutated"

	if got, _ := s.Get("a"); got.Title != "Original" {
		t.Errorf("List() leaked a mutable reference: title = %q", got.Title)
	}
}

func TestUpdateFields(t *testing.T) {
	s := newTestStore(t, Item{ID: "a", Title: "Old Title", Artist: "Old Artist", State: StateWaiting})

	title := "New Title"
	empty := ""
	item, err := s.UpdateFields("a", Patch{Title: &title, Artist: &empty})
	if err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}
	if item.Title != "New Title" {
		t.Errorf("title = %q; want %q", item.Title, "New Title")
	}
	if item.Artist != "Old Artist" {
		t.Errorf("empty patch overwrote artist: %q", item.Artist)
	}

	if _, err := s.UpdateFields("missing", Patch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFields(missing) error = %v; want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, Item{ID: "a", State: StateWaiting}, Item{ID: "b", State: StateWaiting})

	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Remove("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v; want ErrNotFound", err)
	}
	items := s.List()
	if len(items) != 1 || items[0].ID != "b" {
		t.Errorf("unexpected items after remove: %+v", items)
	}
}

func TestClearModes(t *testing.T) {
	seed := []Item{
		{ID: "w", State: StateWaiting},
		{ID: "g", State: StateWorking},
		{ID: "c", State: StateComplete},
		{ID: "f", State: StateFailed},
	}

	tests := []struct {
		mode string
		want []string
	}{
		{ClearComplete, []string{"w", "g", "f"}},
		{ClearFailed, []string{"w", "g", "c"}},
		// "all" and "non_working" share a predicate: only WORKING survives.
		{ClearAll, []string{"g"}},
		{ClearNonWorking, []string{"g"}},
	}

	for _, tt := range tests {
		s := newTestStore(t, seed...)
		remaining, err := s.Clear(tt.mode)
		if err != nil {
			t.Errorf("Clear(%q) error = %v", tt.mode, err)
			continue
		}
		if len(remaining) != len(tt.want) {
			t.Errorf("Clear(%q) kept %d items; want %d", tt.mode, len(remaining), len(tt.want))
			continue
		}
		for i, id := range tt.want {
			if remaining[i].ID != id {
				t.Errorf("Clear(%q)[%d] = %q; want %q", tt.mode, i, remaining[i].ID, id)
			}
		}
	}

	s := newTestStore(t, seed...)
	if _, err := s.Clear("bogus"); !errors.Is(err, ErrUnknownClearMode) {
		t.Errorf("Clear(bogus) error = %v; want ErrUnknownClearMode", err)
	}
}

func TestTransitionProgressInvariants(t *testing.T) {
	s := newTestStore(t, Item{ID: "a", State: StateWaiting})

	s.Transition("a", StateWorking, "")
	item, _ := s.Get("a")
	if item.Progress == nil || *item.Progress != 0 {
		t.Fatalf("WORKING progress = %v; want 0", item.Progress)
	}

	s.SetProgress("a", 42.5)
	s.Transition("a", StateWorking, "")
	item, _ = s.Get("a")
	if item.Progress == nil || *item.Progress != 42.5 {
		t.Errorf("re-entering WORKING reset progress: %v", item.Progress)
	}

	s.Transition("a", StateComplete, "")
	item, _ = s.Get("a")
	if item.Progress == nil || *item.Progress != 100 {
		t.Errorf("COMPLETE progress = %v; want 100", item.Progress)
	}
	if item.Error != "" {
		t.Errorf("COMPLETE error = %q; want empty", item.Error)
	}

	s.Transition("a", StateFailed, "download failed")
	item, _ = s.Get("a")
	if item.Progress != nil {
		t.Errorf("FAILED progress = %v; want nil", item.Progress)
	}
	if item.Error != "download failed" {
		t.Errorf("FAILED error = %q", item.Error)
	}

	// Re-entering WORKING clears the previous failure.
	s.Transition("a", StateWorking, "")
	item, _ = s.Get("a")
	if item.Error != "" {
		t.Errorf("WORKING retained error %q", item.Error)
	}
	if item.Progress == nil || *item.Progress != 0 {
		t.Errorf("WORKING after FAILED progress = %v; want 0", item.Progress)
	}
}

func TestTransitionOnDeletedItemIsNoOp(t *testing.T) {
	s := newTestStore(t, Item{ID: "a", State: StateWorking})
	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	s.Transition("a", StateComplete, "")
	s.SetProgress("a", 50)

	if items := s.List(); len(items) != 0 {
		t.Errorf("transition on deleted id recreated item: %+v", items)
	}
}

func TestSetProgressClamps(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{55.5, 55.5},
		{150, 100},
	}

	for _, tt := range tests {
		s := newTestStore(t, Item{ID: "a", State: StateWorking})
		s.SetProgress("a", tt.in)
		item, _ := s.Get("a")
		if item.Progress == nil || *item.Progress != tt.want {
			t.Errorf("SetProgress(%v) = %v; want %v", tt.in, item.Progress, tt.want)
		}
	}
}

func TestEligibleIDs(t *testing.T) {
	s := newTestStore(t,
		Item{ID: "w", State: StateWaiting},
		Item{ID: "g", State: StateWorking},
		Item{ID: "c", State: StateComplete},
		Item{ID: "f", State: StateFailed},
	)

	want := []string{"w", "c", "f"}
	got := s.EligibleIDs()
	if len(got) != len(want) {
		t.Fatalf("EligibleIDs() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("EligibleIDs()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}
