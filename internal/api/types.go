package api

// Collection names double as endpoint paths and mirror keys.
const (
	CollectionFlashcards = "flashcards"
	CollectionCategories = "categories"
	CollectionProgress   = "progress"
	CollectionBadges     = "badges"
	CollectionUsers      = "users"
)

// Collections lists every collection the resource server exposes.
var Collections = []string{
	CollectionFlashcards,
	CollectionCategories,
	CollectionProgress,
	CollectionBadges,
	CollectionUsers,
}

// Record is implemented by every wire type. WithKey returns a copy carrying id.
type Record[T any] interface {
	Key() string
	Owner() string
	WithKey(id string) T
}

// User mirrors the users collection. Passwords are only ever stored as bcrypt hashes.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name" validate:"notblank"`
	Email        string `json:"email" validate:"required,email"`
	PasswordHash string `json:"passwordHash" validate:"required"`
	Avatar       string `json:"avatar"`
}

func (u User) Key() string   { return u.ID }
func (u User) Owner() string { return u.ID }
func (u User) WithKey(id string) User {
	u.ID = id
	return u
}

// Category is owned by a user; its name is unique per owner, case-insensitively.
type Category struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"notblank"`
	UserID string `json:"userId" validate:"notblank"`
}

func (c Category) Key() string   { return c.ID }
func (c Category) Owner() string { return c.UserID }
func (c Category) WithKey(id string) Category {
	c.ID = id
	return c
}

// Flashcard references its category by name, not by id.
type Flashcard struct {
	ID         string `json:"id"`
	Question   string `json:"question" validate:"notblank"`
	Answer     string `json:"answer" validate:"notblank"`
	Category   string `json:"category" validate:"notblank"`
	UserID     string `json:"userId" validate:"notblank"`
	Difficulty int    `json:"difficulty"`
}

func (f Flashcard) Key() string   { return f.ID }
func (f Flashcard) Owner() string { return f.UserID }
func (f Flashcard) WithKey(id string) Flashcard {
	f.ID = id
	return f
}

// Progress records one quiz attempt. Timestamp is RFC 3339.
type Progress struct {
	ID          string `json:"id"`
	FlashcardID string `json:"flashcardId" validate:"notblank"`
	UserID      string `json:"userId" validate:"notblank"`
	Category    string `json:"category"`
	Correct     bool   `json:"correct"`
	Timestamp   string `json:"timestamp" validate:"notblank"`
}

func (p Progress) Key() string   { return p.ID }
func (p Progress) Owner() string { return p.UserID }
func (p Progress) WithKey(id string) Progress {
	p.ID = id
	return p
}

// Badge may be tied to a category through CategoryID; empty means user-wide.
type Badge struct {
	ID          string `json:"id"`
	UserID      string `json:"userId" validate:"notblank"`
	Name        string `json:"name" validate:"notblank"`
	Description string `json:"description"`
	Earned      bool   `json:"earned"`
	CategoryID  string `json:"categoryId,omitempty"`
}

func (b Badge) Key() string   { return b.ID }
func (b Badge) Owner() string { return b.UserID }
func (b Badge) WithKey(id string) Badge {
	b.ID = id
	return b
}
