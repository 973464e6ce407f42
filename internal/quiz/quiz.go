// Package quiz checks answers, orders cards for review, records attempts and
// summarises a user's progress.
package quiz

import (
	"slices"
	"strings"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/validation"
)

// TimestampLayout matches the millisecond ISO 8601 form the web client writes.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// CheckAnswer compares answer to the card's answer, trimmed and ignoring case.
func CheckAnswer(card api.Flashcard, answer string) (bool, error) {
	answer = strings.TrimSpace(answer)
	if err := validation.Required(map[string]string{"answer": answer}); err != nil {
		return false, err
	}
	return strings.EqualFold(answer, strings.TrimSpace(card.Answer)), nil
}

// Miss is a card answered incorrectly during a session.
type Miss struct {
	Card   api.Flashcard `json:"card"`
	Answer string        `json:"answer"`
}

// Session walks a deck once. Cards whose most recent attempt was wrong are
// asked first, the rest in deck order.
type Session struct {
	cards []api.Flashcard
	due   map[string]bool
	asked map[string]bool

	Score  int
	Missed []Miss
}

// NewSession builds a session over cards using the user's attempt history.
func NewSession(cards []api.Flashcard, history []api.Progress) *Session {
	due := make(map[string]bool)
	for _, p := range sortByTime(history) {
		due[p.FlashcardID] = !p.Correct
	}
	return &Session{cards: cards, due: due, asked: make(map[string]bool, len(cards))}
}

// Next returns the next card to ask, or false when every card has been asked.
func (s *Session) Next() (api.Flashcard, bool) {
	for _, c := range s.cards {
		if s.due[c.ID] && !s.asked[c.ID] {
			return c, true
		}
	}
	for _, c := range s.cards {
		if !s.asked[c.ID] {
			return c, true
		}
	}
	return api.Flashcard{}, false
}

// Mark records the outcome of asking card.
func (s *Session) Mark(card api.Flashcard, answer string, correct bool) {
	s.asked[card.ID] = true
	s.due[card.ID] = !correct
	if correct {
		s.Score++
		return
	}
	s.Missed = append(s.Missed, Miss{Card: card, Answer: answer})
}

func (s *Session) Asked() int { return len(s.asked) }

func (s *Session) Len() int { return len(s.cards) }

func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// sortByTime returns history oldest first. Records with equal or unparseable
// timestamps keep their relative order.
func sortByTime(history []api.Progress) []api.Progress {
	out := slices.Clone(history)
	slices.SortStableFunc(out, func(a, b api.Progress) int {
		ta, _ := parseTimestamp(a.Timestamp)
		tb, _ := parseTimestamp(b.Timestamp)
		return ta.Compare(tb)
	})
	return out
}
