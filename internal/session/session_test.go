package session

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/ashby/guidepost/internal/docstore"
	"github.com/ashby/guidepost/internal/models"
)

func TestNewUnitNewestFirst(t *testing.T) {
	s := New("d1", "Tokyo")
	first := s.NewUnit("ramen", "")
	second := s.NewUnit("temples", "")

	units := s.Units()
	if len(units) != 2 {
		t.Fatalf("len = %d, want 2", len(units))
	}
	if units[0].ID != second.ID || units[1].ID != first.ID {
		t.Errorf("top-level order not newest-first: %s, %s", units[0].Query, units[1].Query)
	}
}

func TestNewUnitSupersedesStream(t *testing.T) {
	s := New("d1", "Tokyo")
	first := s.NewUnit("ramen", "")
	if id, ok := s.CurrentStreaming(); !ok || id != first.ID {
		t.Fatalf("CurrentStreaming = %q, %v", id, ok)
	}

	s.Append(first.ID, "partial answer")
	second := s.NewUnit("temples", "")

	if id, _ := s.CurrentStreaming(); id != second.ID {
		t.Errorf("streaming slot = %q, want %q", id, second.ID)
	}
	got, _ := s.Unit(first.ID)
	if got.IsStreaming {
		t.Error("superseded unit should be finalized")
	}
	if got.Response != "partial answer" {
		t.Errorf("superseded response = %q", got.Response)
	}
}

func TestAppendAfterFinalizeIgnored(t *testing.T) {
	s := New("d1", "Kyoto")
	u := s.NewUnit("gardens", "")
	if !s.Append(u.ID, "hello") {
		t.Fatal("append to streaming unit should succeed")
	}
	s.Finalize(u.ID)
	if s.Append(u.ID, " world") {
		t.Error("append after finalize should report false")
	}
	got, _ := s.Unit(u.ID)
	if got.Response != "hello" {
		t.Errorf("response = %q, want %q", got.Response, "hello")
	}
	if _, ok := s.CurrentStreaming(); ok {
		t.Error("streaming slot should be empty after finalize")
	}
}

func TestAppendUnknownUnit(t *testing.T) {
	s := New("d1", "Kyoto")
	if s.Append("missing", "x") {
		t.Error("append to unknown unit should report false")
	}
}

func TestNestedInsertAndParentFallback(t *testing.T) {
	s := New("d1", "Lisbon")
	root := s.NewUnit("neighborhoods", "")
	childA := s.NewUnit("Alfama", root.ID)
	childB := s.NewUnit("Belem", root.ID)
	orphan := s.NewUnit("day trips", "nonexistent-parent")

	units := s.Units()
	if len(units) != 2 {
		t.Fatalf("top-level len = %d, want 2", len(units))
	}
	if units[0].ID != orphan.ID {
		t.Errorf("orphan should fall back to top level, got %q first", units[0].Query)
	}
	if orphan.ParentID != "" {
		t.Errorf("orphan ParentID = %q, want empty", orphan.ParentID)
	}

	tree := units[1]
	if tree.ID != root.ID || len(tree.Children) != 2 {
		t.Fatalf("root children = %d, want 2", len(tree.Children))
	}
	if tree.Children[0].ID != childB.ID || tree.Children[1].ID != childA.ID {
		t.Error("children not newest-first")
	}
	if tree.Children[0].ParentID != root.ID {
		t.Errorf("child ParentID = %q, want %q", tree.Children[0].ParentID, root.ID)
	}
}

func TestRemoveTopLevelOnly(t *testing.T) {
	s := New("d1", "Lisbon")
	root := s.NewUnit("food", "")
	child := s.NewUnit("pastel de nata", root.ID)

	if s.Remove(child.ID) {
		t.Error("nested unit must not be removable")
	}
	if !s.Remove(root.ID) {
		t.Fatal("top-level removal failed")
	}
	if _, ok := s.Unit(root.ID); ok {
		t.Error("removed root still present")
	}
	if _, ok := s.Unit(child.ID); ok {
		t.Error("subtree should be dropped with its root")
	}
	if len(s.Units()) != 0 {
		t.Error("tree should be empty")
	}
}

func TestRemoveClearsStreamingSlot(t *testing.T) {
	s := New("d1", "Lisbon")
	u := s.NewUnit("beaches", "")
	if !s.Remove(u.ID) {
		t.Fatal("remove failed")
	}
	if _, ok := s.CurrentStreaming(); ok {
		t.Error("removing the streaming unit should clear the slot")
	}
}

func TestSavedItems(t *testing.T) {
	s := New("d1", "Rome")
	a := s.AddSavedItem("Trattoria Da Enzo", "where to eat in Trastevere")
	b := s.AddSavedItem("Galleria Borghese", "art museums")

	items := s.SavedItems()
	if len(items) != 2 || items[0].ID != a.ID || items[1].ID != b.ID {
		t.Fatalf("saved items wrong: %+v", items)
	}

	if !s.RemoveSavedItem(a.ID) {
		t.Fatal("remove saved item failed")
	}
	if s.RemoveSavedItem(a.ID) {
		t.Error("second removal should report false")
	}
	if len(s.SavedItems()) != 1 {
		t.Error("one item should remain")
	}

	s.ClearSavedItems()
	if len(s.SavedItems()) != 0 {
		t.Error("clear should empty the list")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New("d1", "Rome")
	root := s.NewUnit("districts", "")
	s.Append(root.ID, "## Trastevere\n")
	s.Finalize(root.ID)
	child := s.NewUnit("Trastevere food", root.ID)
	s.Append(child.ID, "### Da Enzo\n")
	s.AddSavedItem("Da Enzo", "Trastevere food")

	snap := s.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var draft models.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := Restore(draft)
	if restored.ID() != "d1" || restored.Destination() != "Rome" {
		t.Errorf("identity lost: %s %s", restored.ID(), restored.Destination())
	}
	units := restored.Units()
	if len(units) != 1 || units[0].ID != root.ID {
		t.Fatalf("restored tree shape wrong: %+v", units)
	}
	if len(units[0].Children) != 1 || units[0].Children[0].ID != child.ID {
		t.Fatal("restored child missing")
	}
	if units[0].Children[0].IsStreaming {
		t.Error("restored session must have no live stream")
	}
	if _, ok := restored.CurrentStreaming(); ok {
		t.Error("restored session must have empty streaming slot")
	}
	if len(restored.SavedItems()) != 1 {
		t.Error("saved items lost in round trip")
	}
}

func managerEnv(t *testing.T) *Manager {
	t.Helper()
	store, err := docstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewManager(store, logger)
}

func TestManagerPersistAndReopen(t *testing.T) {
	m := managerEnv(t)

	s, err := m.Session("d9", "Oslo")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	u := s.NewUnit("fjord tours", "")
	s.Append(u.ID, "## Day trips\n")
	s.Finalize(u.ID)
	if err := m.Persist(s); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	m.Evict("d9")
	got, err := m.Get("d9")
	if err != nil {
		t.Fatalf("Get after evict: %v", err)
	}
	units := got.Units()
	if len(units) != 1 || units[0].Query != "fjord tours" {
		t.Fatalf("reloaded tree wrong: %+v", units)
	}
}

func TestManagerGetUnknown(t *testing.T) {
	m := managerEnv(t)
	if _, err := m.Get("nope"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestManagerListAndDelete(t *testing.T) {
	m := managerEnv(t)

	for _, id := range []string{"a", "b"} {
		s, err := m.Session(id, "Bergen")
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Persist(s); err != nil {
			t.Fatal(err)
		}
	}

	drafts, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("len = %d, want 2", len(drafts))
	}

	if err := m.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	drafts, _ = m.List()
	if len(drafts) != 1 || drafts[0].ID != "b" {
		t.Errorf("after delete: %+v", drafts)
	}
	if _, err := m.Get("a"); err == nil {
		t.Error("deleted session should be gone")
	}
}
