// Package mirror is the local persisted copy of every collection. It is the
// system of record while the resource server is unreachable and a
// last-write-wins cache of it otherwise.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Entry is one named persisted value, the equivalent of a local-storage key.
type Entry struct {
	Key       string `gorm:"column:name;primaryKey;type:varchar(64)"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// Store holds the five collections in memory and persists every change.
type Store struct {
	mu   sync.RWMutex
	db   *gorm.DB
	data map[string]interface{}
}

var decoders = map[string]func([]byte) (interface{}, error){
	api.CollectionFlashcards: decode[api.Flashcard],
	api.CollectionCategories: decode[api.Category],
	api.CollectionProgress:   decode[api.Progress],
	api.CollectionBadges:     decode[api.Badge],
	api.CollectionUsers:      decode[api.User],
}

func decode[T any](data []byte) (interface{}, error) {
	out := []T{}
	if err := json.Unmarshal(data, &out); err != nil {
		return []T{}, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Open opens (or creates) the SQLite mirror at path and loads every collection.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating mirror directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening mirror %s: %w", path, err)
	}
	return New(db)
}

// New builds a Store on an existing connection.
func New(db *gorm.DB) (*Store, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating mirror: %w", err)
	}

	s := &Store{db: db, data: make(map[string]interface{}, len(decoders))}
	for _, name := range api.Collections {
		s.data[name] = s.loadCollection(name)
	}
	return s, nil
}

// loadCollection falls back to an empty collection when the entry is absent or malformed.
func (s *Store) loadCollection(name string) interface{} {
	dec := decoders[name]
	empty, _ := dec([]byte("[]"))

	var e Entry
	err := s.db.Where("name = ?", name).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return empty
	}
	if err != nil {
		logger.Warn("mirror_load_failed", map[string]interface{}{"collection": name, "error": err.Error()})
		return empty
	}

	v, err := dec([]byte(e.Value))
	if err != nil {
		logger.Warn("mirror_entry_malformed", map[string]interface{}{"collection": name, "error": err.Error()})
		return empty
	}
	return v
}

// Close releases the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load returns a copy of a collection.
func Load[T any](s *Store, collection string) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := s.data[collection].([]T)
	return slices.Clone(v)
}

// UpdateCache replaces a whole collection and re-persists its serialized form.
func UpdateCache[T any](s *Store, collection string, records []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateLocked(s, collection, records)
}

// Mutate applies fn to the current collection and stores the result, holding
// the store lock across the read and the write.
func Mutate[T any](s *Store, collection string, fn func([]T) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, _ := s.data[collection].([]T)
	next, err := fn(slices.Clone(current))
	if err != nil {
		return err
	}
	return updateLocked(s, collection, next)
}

func updateLocked[T any](s *Store, collection string, records []T) error {
	if _, ok := decoders[collection]; !ok {
		return fmt.Errorf("unknown collection %q", collection)
	}
	if _, ok := s.data[collection].([]T); !ok {
		return fmt.Errorf("collection %q does not hold %T", collection, records)
	}
	if records == nil {
		records = []T{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := s.put(collection, string(data)); err != nil {
		return fmt.Errorf("persisting %s: %w", collection, err)
	}
	s.data[collection] = slices.Clone(records)
	return nil
}

func (s *Store) put(key, value string) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&Entry{Key: key, Value: value}).Error
}

// GetEntry reads a non-collection entry into out. It reports false when absent.
func (s *Store) GetEntry(key string, out interface{}) (bool, error) {
	var e Entry
	err := s.db.Where("name = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(e.Value), out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// SetEntry persists v as JSON under key.
func (s *Store) SetEntry(key string, v interface{}) error {
	if _, ok := decoders[key]; ok {
		return fmt.Errorf("%q is a collection; use UpdateCache", key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.put(key, string(data))
}

// DeleteEntry removes key. Removing a missing key is not an error.
func (s *Store) DeleteEntry(key string) error {
	return s.db.Where("name = ?", key).Delete(&Entry{}).Error
}
