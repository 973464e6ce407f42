package resource

import (
	"cmp"
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/mirror"
	"github.com/sparkvibe/sparkvibe/internal/resourceserver/servertest"
	"github.com/sparkvibe/sparkvibe/internal/validation"
)

type alwaysOnline struct{}

func (alwaysOnline) Probe(context.Context) error { return nil }

func openStore(t *testing.T) *mirror.Store {
	t.Helper()
	store, err := mirror.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("failed opening mirror: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	remote := api.NewClient(baseURL, 2*time.Second)
	monitor := connectivity.NewMonitor(connectivity.HTTPProbe{Client: remote}, 0)
	return NewClient(remote, openStore(t), monitor)
}

func onlineClient(t *testing.T) *Client {
	return newTestClient(t, servertest.Start(t))
}

func offlineClient(t *testing.T) *Client {
	return newTestClient(t, servertest.DeadURL(t))
}

func card(owner, category, question string) api.Flashcard {
	return api.Flashcard{Question: question, Answer: "a", Category: category, UserID: owner}
}

func TestOfflineCRUD(t *testing.T) {
	ctx := context.Background()
	client := offlineClient(t)

	created, err := client.Flashcards.Create(ctx, card("u1", "Math", "2+2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an id to be assigned")
	}
	if client.Monitor.State() != connectivity.Offline {
		t.Errorf("expected monitor offline, got %v", client.Monitor.State())
	}

	got, err := client.Flashcards.Get(ctx, created.ID)
	if err != nil || got != created {
		t.Fatalf("get: %v %+v", err, got)
	}

	updated, err := client.Flashcards.Update(ctx, created.ID, Patch{"answer": "4", "id": "hijack"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Answer != "4" || updated.ID != created.ID || updated.Question != "2+2" {
		t.Errorf("unexpected update result %+v", updated)
	}

	list, err := client.Flashcards.List(ctx, "u1")
	if err != nil || len(list) != 1 || list[0].Answer != "4" {
		t.Fatalf("list: %v %+v", err, list)
	}

	if err := client.Flashcards.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Flashcards.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := client.Flashcards.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := client.Flashcards.Update(ctx, "missing", Patch{"answer": "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound updating a missing record, got %v", err)
	}
}

func TestOfflineListIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	client := offlineClient(t)

	for _, c := range []api.Flashcard{card("u1", "Math", "q1"), card("u2", "Math", "q2"), card("u1", "Art", "q3")} {
		if _, err := client.Flashcards.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := client.Flashcards.List(ctx, "u1")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 cards for u1, got %d (%v)", len(list), err)
	}

	found, err := client.Flashcards.Find(ctx, url.Values{"userId": {"u1"}, "category": {"Art"}})
	if err != nil || len(found) != 1 || found[0].Question != "q3" {
		t.Errorf("unexpected find result %+v (%v)", found, err)
	}

	empty, err := client.Flashcards.List(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("expected an empty non-nil list, got %#v (%v)", empty, err)
	}
}

func TestOnlineCRUD(t *testing.T) {
	ctx := context.Background()
	client := onlineClient(t)

	created, err := client.Flashcards.Create(ctx, card("u1", "Math", "2+2"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected the server to assign an id")
	}
	if client.Monitor.State() != connectivity.Online {
		t.Errorf("expected monitor online, got %v", client.Monitor.State())
	}
	if m := client.Flashcards.Mirror(); len(m) != 1 || m[0] != created {
		t.Errorf("expected the mirror to hold the created card, got %+v", m)
	}

	updated, err := client.Flashcards.Update(ctx, created.ID, Patch{"difficulty": 3})
	if err != nil || updated.Difficulty != 3 {
		t.Fatalf("update: %v %+v", err, updated)
	}
	if m := client.Flashcards.Mirror(); m[0].Difficulty != 3 {
		t.Errorf("expected the mirror copy to be spliced, got %+v", m[0])
	}

	if err := client.Flashcards.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m := client.Flashcards.Mirror(); len(m) != 0 {
		t.Errorf("expected the mirror to forget the card, got %+v", m)
	}
	if err := client.Flashcards.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := client.Flashcards.DeleteRemote(ctx, created.ID); err != nil {
		t.Errorf("expected a remote 404 to count as deleted, got %v", err)
	}
	if _, err := client.Flashcards.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOnlineListReplacesOnlyMatchingMirrorRecords(t *testing.T) {
	ctx := context.Background()
	client := onlineClient(t)

	if _, err := client.Flashcards.Create(ctx, card("u1", "Math", "remote")); err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := []api.Flashcard{
		{ID: "stale", Question: "gone", Answer: "a", Category: "Math", UserID: "u1"},
		{ID: "other", Question: "keep", Answer: "a", Category: "Math", UserID: "u2"},
	}
	if err := mirror.UpdateCache(client.Store, api.CollectionFlashcards, stale); err != nil {
		t.Fatalf("seeding mirror: %v", err)
	}

	list, err := client.Flashcards.List(ctx, "u1")
	if err != nil || len(list) != 1 || list[0].Question != "remote" {
		t.Fatalf("unexpected list %+v (%v)", list, err)
	}

	byID := map[string]bool{}
	for _, c := range client.Flashcards.Mirror() {
		byID[c.Question] = true
	}
	if byID["gone"] || !byID["keep"] || !byID["remote"] {
		t.Errorf("unexpected mirror after list: %v", byID)
	}
}

func TestCreateValidatesBeforeStoring(t *testing.T) {
	ctx := context.Background()
	client := offlineClient(t)

	_, err := client.Flashcards.Create(ctx, api.Flashcard{Question: "  ", Answer: "a", Category: "Math", UserID: "u1"})
	if !errors.Is(err, validation.ErrValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	var verr *validation.Error
	if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0] != "question" {
		t.Errorf("expected the question field to be reported, got %v", err)
	}
	if m := client.Flashcards.Mirror(); len(m) != 0 {
		t.Errorf("nothing should be stored, got %+v", m)
	}
	if client.Monitor.State() != connectivity.Unknown {
		t.Errorf("validation should not probe, got %v", client.Monitor.State())
	}
}

func TestFallsBackWhenServerDisappears(t *testing.T) {
	ctx := context.Background()
	remote := api.NewClient(servertest.DeadURL(t), time.Second)
	monitor := connectivity.NewMonitor(alwaysOnline{}, time.Hour)
	client := NewClient(remote, openStore(t), monitor)

	created, err := client.Categories.Create(ctx, api.Category{Name: "Math", UserID: "u1"})
	if err != nil {
		t.Fatalf("expected the mirror to take the write, got %v", err)
	}
	if created.ID == "" {
		t.Error("expected a local id")
	}
	if monitor.State() != connectivity.Offline {
		t.Errorf("expected the monitor to go offline, got %v", monitor.State())
	}
	if m := client.Categories.Mirror(); len(m) != 1 {
		t.Errorf("expected one mirrored category, got %+v", m)
	}
}

func TestCreateCategory(t *testing.T) {
	for _, mode := range []string{"online", "offline"} {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			client := offlineClient(t)
			if mode == "online" {
				client = onlineClient(t)
			}

			first, err := client.CreateCategory(ctx, api.Category{Name: "  Spanish ", UserID: "u1"})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if first.Name != "Spanish" {
				t.Errorf("expected a trimmed name, got %q", first.Name)
			}

			if _, err := client.CreateCategory(ctx, api.Category{Name: "spanish", UserID: "u1"}); !errors.Is(err, ErrCategoryExists) {
				t.Errorf("expected ErrCategoryExists, got %v", err)
			}

			if _, err := client.CreateCategory(ctx, api.Category{Name: "Spanish", UserID: "u2"}); err != nil {
				t.Errorf("another owner may reuse the name: %v", err)
			}

			if _, err := client.CreateCategory(ctx, api.Category{Name: " ", UserID: "u1"}); !errors.Is(err, validation.ErrValidation) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestNameTaken(t *testing.T) {
	categories := []api.Category{{ID: "c1", Name: "Math"}, {ID: "c2", Name: " Art "}}
	tests := []struct {
		name     string
		input    string
		exceptID string
		want     bool
	}{
		{"exact", "Math", "", true},
		{"case-insensitive", "mATh", "", true},
		{"trimmed", "art", "", true},
		{"excluded self", "Math", "c1", false},
		{"free", "History", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NameTaken(categories, tt.input, tt.exceptID); got != tt.want {
				t.Errorf("NameTaken(%q, %q) = %v, want %v", tt.input, tt.exceptID, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	c := api.Flashcard{ID: "f1", Category: "Math", UserID: "u1", Difficulty: 2}
	tests := []struct {
		name  string
		query url.Values
		want  bool
	}{
		{"empty query", url.Values{}, true},
		{"string field", url.Values{"category": {"Math"}}, true},
		{"numeric field", url.Values{"difficulty": {"2"}}, true},
		{"mismatch", url.Values{"userId": {"u2"}}, false},
		{"unknown field", url.Values{"color": {"red"}}, false},
		{"underscore params ignored", url.Values{"_limit": {"1"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(c, tt.query); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func clientForMode(t *testing.T, mode string) *Client {
	if mode == "online" {
		return onlineClient(t)
	}
	return offlineClient(t)
}

func TestListIsStableWithoutWrites(t *testing.T) {
	for _, mode := range []string{"online", "offline"} {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			client := clientForMode(t, mode)

			for _, name := range []string{"Spanish", "Math", "Art"} {
				if _, err := client.CreateCategory(ctx, api.Category{Name: name, UserID: "u1"}); err != nil {
					t.Fatalf("create %s: %v", name, err)
				}
			}
			if _, err := client.CreateCategory(ctx, api.Category{Name: "Spanish", UserID: "u2"}); err != nil {
				t.Fatalf("create: %v", err)
			}

			first, err := client.Categories.List(ctx, "u1")
			if err != nil {
				t.Fatalf("first list: %v", err)
			}
			second, err := client.Categories.List(ctx, "u1")
			if err != nil {
				t.Fatalf("second list: %v", err)
			}

			byID := func(a, b api.Category) int { return cmp.Compare(a.ID, b.ID) }
			slices.SortFunc(first, byID)
			slices.SortFunc(second, byID)
			if len(first) != 3 || !slices.Equal(first, second) {
				t.Errorf("expected the same 3 categories twice, got %+v then %+v", first, second)
			}
		})
	}
}

func TestCreatedCardListsUnchanged(t *testing.T) {
	for _, mode := range []string{"online", "offline"} {
		t.Run(mode, func(t *testing.T) {
			ctx := context.Background()
			client := clientForMode(t, mode)

			want := api.Flashcard{Question: "hola", Answer: "hello", Category: "Spanish", UserID: "u1", Difficulty: 3}
			created, err := client.Flashcards.Create(ctx, want)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if created.ID == "" {
				t.Fatal("expected an id to be assigned")
			}
			want.ID = created.ID
			if created != want {
				t.Errorf("create returned %+v, want %+v", created, want)
			}

			list, err := client.Flashcards.List(ctx, "u1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 1 || list[0] != want {
				t.Errorf("expected exactly %+v, got %+v", want, list)
			}
		})
	}
}
