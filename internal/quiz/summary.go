package quiz

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/api"
)

// Window limits the per-day breakdown of a Summary.
type Window string

const (
	WindowAll    Window = "all"
	Window7Days  Window = "7days"
	Window30Days Window = "30days"
)

func ParseWindow(s string) (Window, error) {
	switch w := Window(s); w {
	case WindowAll, Window7Days, Window30Days:
		return w, nil
	case "":
		return WindowAll, nil
	default:
		return "", fmt.Errorf("unknown window %q (want all, 7days or 30days)", s)
	}
}

func (w Window) cutoff(now time.Time) (time.Time, bool) {
	switch w {
	case Window7Days:
		return now.AddDate(0, 0, -7), true
	case Window30Days:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

type Tally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

func (t *Tally) add(correct bool) {
	if correct {
		t.Correct++
	} else {
		t.Incorrect++
	}
}

type CategoryTally struct {
	Category string `json:"category"`
	Tally
}

type DayTally struct {
	Date string `json:"date"`
	Tally
}

type Summary struct {
	Streak     int             `json:"streak"`
	Total      Tally           `json:"total"`
	Categories []CategoryTally `json:"categories"`
	Days       []DayTally      `json:"days"`
}

// Summarize computes the current streak, per-category totals and per-day
// totals within window.
func Summarize(progress []api.Progress, window Window, now time.Time) Summary {
	ordered := sortByTime(progress)
	s := Summary{Categories: []CategoryTally{}, Days: []DayTally{}}

	for i := len(ordered) - 1; i >= 0 && ordered[i].Correct; i-- {
		s.Streak++
	}

	categoryIndex := map[string]int{}
	dayIndex := map[string]int{}
	cutoff, bounded := window.cutoff(now)

	for _, p := range ordered {
		s.Total.add(p.Correct)

		i, ok := categoryIndex[p.Category]
		if !ok {
			i = len(s.Categories)
			categoryIndex[p.Category] = i
			s.Categories = append(s.Categories, CategoryTally{Category: p.Category})
		}
		s.Categories[i].add(p.Correct)

		t, ok := parseTimestamp(p.Timestamp)
		if !ok || (bounded && t.Before(cutoff)) {
			continue
		}
		date := t.UTC().Format(time.DateOnly)
		j, ok := dayIndex[date]
		if !ok {
			j = len(s.Days)
			dayIndex[date] = j
			s.Days = append(s.Days, DayTally{Date: date})
		}
		s.Days[j].add(p.Correct)
	}

	slices.SortFunc(s.Days, func(a, b DayTally) int { return cmp.Compare(a.Date, b.Date) })
	return s
}

// WriteCSV writes the per-category totals with a Category,Correct,Incorrect header.
func WriteCSV(w io.Writer, s Summary) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Category", "Correct", "Incorrect"}); err != nil {
		return err
	}
	for _, c := range s.Categories {
		row := []string{c.Category, strconv.Itoa(c.Correct), strconv.Itoa(c.Incorrect)}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// BadgeProgress returns how far a badge is toward being earned.
func BadgeProgress(b api.Badge, s Summary) (current, target int) {
	if b.Name == QuizMasterBadge {
		return s.Total.Correct, QuizMasterTarget
	}
	if b.Earned {
		return 1, 1
	}
	return 0, 1
}
