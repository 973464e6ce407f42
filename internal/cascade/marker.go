package cascade

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sparkvibe/sparkvibe/internal/mirror"
)

const markerKey = "cascade"

type Op string

const (
	OpRenameCategory Op = "rename_category"
	OpDeleteCategory Op = "delete_category"
	OpDeleteUser     Op = "delete_user"
)

// Marker records a cascade that has started but not finished. It carries
// everything needed to re-run the cascade from the start.
type Marker struct {
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	UserID     string    `json:"userId"`
	CategoryID string    `json:"categoryId,omitempty"`
	OldName    string    `json:"oldName,omitempty"`
	NewName    string    `json:"newName,omitempty"`
	Online     bool      `json:"online"`
	StartedAt  time.Time `json:"startedAt"`
}

// markerMu serializes read-modify-write of the marker list.
var markerMu sync.Mutex

// Pending returns the unfinished cascades, oldest first.
func Pending(store *mirror.Store) ([]Marker, error) {
	markerMu.Lock()
	defer markerMu.Unlock()
	return pendingLocked(store)
}

func pendingLocked(store *mirror.Store) ([]Marker, error) {
	var markers []Marker
	if _, err := store.GetEntry(markerKey, &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

// saveMarker adds m to the list, or replaces the marker with the same id.
// A marker without an id is given one.
func saveMarker(store *mirror.Store, m *Marker) error {
	markerMu.Lock()
	defer markerMu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	markers, err := pendingLocked(store)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(markers, func(p Marker) bool { return p.ID == m.ID })
	if i >= 0 {
		markers[i] = *m
	} else {
		markers = append(markers, *m)
	}
	return store.SetEntry(markerKey, markers)
}

func clearMarker(store *mirror.Store, id string) error {
	markerMu.Lock()
	defer markerMu.Unlock()

	markers, err := pendingLocked(store)
	if err != nil {
		return err
	}
	markers = slices.DeleteFunc(markers, func(p Marker) bool { return p.ID == id })
	if len(markers) == 0 {
		return store.DeleteEntry(markerKey)
	}
	return store.SetEntry(markerKey, markers)
}
