package mirror

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sparkvibe/sparkvibe/internal/api"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirror.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_StartsEmpty(t *testing.T) {
	s, _ := openTemp(t)

	if got := Load[api.Flashcard](s, api.CollectionFlashcards); len(got) != 0 {
		t.Errorf("expected empty flashcards, got %v", got)
	}
	if got := Load[api.User](s, api.CollectionUsers); got == nil {
		t.Error("expected an empty, non-nil users collection")
	}
}

func TestStore_UpdateCachePersists(t *testing.T) {
	s, path := openTemp(t)

	cats := []api.Category{{ID: "c1", Name: "Spanish", UserID: "1"}, {ID: "c2", Name: "Go", UserID: "1"}}
	if err := UpdateCache(s, api.CollectionCategories, cats); err != nil {
		t.Fatalf("UpdateCache() returned error: %v", err)
	}
	_ = s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got := Load[api.Category](reopened, api.CollectionCategories)
	if len(got) != 2 || got[0] != cats[0] || got[1] != cats[1] {
		t.Errorf("expected %v after reopen, got %v", cats, got)
	}
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	s, _ := openTemp(t)
	_ = UpdateCache(s, api.CollectionBadges, []api.Badge{{ID: "b1", Name: "Quiz Master"}})

	got := Load[api.Badge](s, api.CollectionBadges)
	got[0].Name = "changed"

	if again := Load[api.Badge](s, api.CollectionBadges); again[0].Name != "Quiz Master" {
		t.Errorf("mutating a loaded slice leaked into the store: %v", again)
	}
}

func TestStore_MalformedEntryDefaultsToEmpty(t *testing.T) {
	s, path := openTemp(t)
	if err := s.put(api.CollectionProgress, "{not json"); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	_ = UpdateCache(s, api.CollectionCategories, []api.Category{{ID: "c1", Name: "Go", UserID: "1"}})
	_ = s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if got := Load[api.Progress](reopened, api.CollectionProgress); len(got) != 0 {
		t.Errorf("expected malformed progress to load empty, got %v", got)
	}
	if got := Load[api.Category](reopened, api.CollectionCategories); len(got) != 1 {
		t.Errorf("expected other collections to load normally, got %v", got)
	}
}

func TestStore_Mutate(t *testing.T) {
	s, _ := openTemp(t)
	_ = UpdateCache(s, api.CollectionFlashcards, []api.Flashcard{{ID: "f1"}, {ID: "f2"}})

	err := Mutate(s, api.CollectionFlashcards, func(cards []api.Flashcard) ([]api.Flashcard, error) {
		return cards[:1], nil
	})
	if err != nil {
		t.Fatalf("Mutate() returned error: %v", err)
	}
	if got := Load[api.Flashcard](s, api.CollectionFlashcards); len(got) != 1 || got[0].ID != "f1" {
		t.Errorf("unexpected collection after Mutate: %v", got)
	}

	boom := errors.New("boom")
	err = Mutate(s, api.CollectionFlashcards, func(cards []api.Flashcard) ([]api.Flashcard, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to propagate, got %v", err)
	}
	if got := Load[api.Flashcard](s, api.CollectionFlashcards); len(got) != 1 {
		t.Errorf("a failed Mutate must leave the collection untouched, got %v", got)
	}
}

func TestStore_RejectsWrongTypes(t *testing.T) {
	s, _ := openTemp(t)

	if err := UpdateCache(s, api.CollectionUsers, []api.Badge{{ID: "b"}}); err == nil {
		t.Error("expected an error storing badges under users")
	}
	if err := UpdateCache(s, "dark_mode", []string{"x"}); err == nil {
		t.Error("expected an error for an unknown collection")
	}
}

func TestStore_Entries(t *testing.T) {
	s, _ := openTemp(t)

	type session struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	var out session
	found, err := s.GetEntry("session", &out)
	if err != nil || found {
		t.Fatalf("expected missing entry, got found=%v err=%v", found, err)
	}

	if err := s.SetEntry("session", session{ID: "1", Name: "Ann"}); err != nil {
		t.Fatalf("SetEntry() returned error: %v", err)
	}
	if err := s.SetEntry("session", session{ID: "1", Name: "Ann B"}); err != nil {
		t.Fatalf("SetEntry() overwrite returned error: %v", err)
	}
	found, err = s.GetEntry("session", &out)
	if err != nil || !found || out.Name != "Ann B" {
		t.Fatalf("expected overwritten session, got %+v found=%v err=%v", out, found, err)
	}

	if err := s.DeleteEntry("session"); err != nil {
		t.Fatalf("DeleteEntry() returned error: %v", err)
	}
	if found, _ := s.GetEntry("session", &out); found {
		t.Error("expected session to be gone")
	}

	if err := s.SetEntry(api.CollectionUsers, []api.User{}); err == nil {
		t.Error("expected SetEntry to refuse a collection key")
	}
}
