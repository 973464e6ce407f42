package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/auth"
	"github.com/sparkvibe/sparkvibe/internal/cascade"
	"github.com/sparkvibe/sparkvibe/internal/quiz"
)

// Stdout is where every printer writes. Commands point it at cobra's output.
var Stdout io.Writer = os.Stdout

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(Stdout, 0, 0, 2, ' ', 0)
}

// JSON prints v as indented JSON.
func JSON(v interface{}) {
	enc := json.NewEncoder(Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// Println prints a plain status line.
func Println(format string, args ...interface{}) {
	fmt.Fprintf(Stdout, format+"\n", args...)
}

// CardTable prints flashcards as a table.
func CardTable(cards []api.Flashcard) {
	if len(cards) == 0 {
		fmt.Fprintln(Stdout, "No flashcards found.")
		return
	}

	w := newTable()
	fmt.Fprintln(w, "ID\tCATEGORY\tDIFFICULTY\tQUESTION\tANSWER")
	for _, c := range cards {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Category, Difficulty(c.Difficulty), Truncate(c.Question, 40), Truncate(c.Answer, 30))
	}
	w.Flush()
}

// CategoryTable prints categories with the number of cards filed under each.
func CategoryTable(categories []api.Category, cards []api.Flashcard) {
	if len(categories) == 0 {
		fmt.Fprintln(Stdout, "No categories found.")
		return
	}

	counts := make(map[string]int, len(categories))
	for _, c := range cards {
		counts[c.Category]++
	}

	w := newTable()
	fmt.Fprintln(w, "ID\tNAME\tCARDS")
	for _, c := range categories {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.ID, c.Name, counts[c.Name])
	}
	w.Flush()
}

// SessionInfo prints the signed-in user.
func SessionInfo(s auth.Session) {
	w := newTable()
	fmt.Fprintf(w, "Name:\t%s\n", s.Name)
	fmt.Fprintf(w, "Email:\t%s\n", s.Email)
	if s.Avatar != "" {
		fmt.Fprintf(w, "Avatar:\t%s\n", s.Avatar)
	}
	fmt.Fprintf(w, "ID:\t%s\n", s.ID)
	w.Flush()
}

// ProgressSummary prints the streak and the per-category and per-day totals.
func ProgressSummary(s quiz.Summary) {
	plural := "s"
	if s.Streak == 1 {
		plural = ""
	}
	fmt.Fprintf(Stdout, "Streak: %d correct answer%s in a row\n", s.Streak, plural)
	fmt.Fprintf(Stdout, "Total:  %d correct, %d incorrect\n\n", s.Total.Correct, s.Total.Incorrect)

	if len(s.Categories) == 0 {
		fmt.Fprintln(Stdout, "No quiz attempts yet.")
		return
	}

	w := newTable()
	fmt.Fprintln(w, "CATEGORY\tCORRECT\tINCORRECT")
	for _, c := range s.Categories {
		fmt.Fprintf(w, "%s\t%d\t%d\n", c.Category, c.Correct, c.Incorrect)
	}
	w.Flush()

	if len(s.Days) == 0 {
		return
	}
	fmt.Fprintln(Stdout)
	w = newTable()
	fmt.Fprintln(w, "DATE\tCORRECT\tINCORRECT")
	for _, d := range s.Days {
		fmt.Fprintf(w, "%s\t%d\t%d\n", d.Date, d.Correct, d.Incorrect)
	}
	w.Flush()
}

// BadgeTable prints earned badges and the progress toward the others.
func BadgeTable(badges []api.Badge, s quiz.Summary) {
	if len(badges) == 0 {
		fmt.Fprintln(Stdout, "No badges yet.")
		return
	}

	w := newTable()
	fmt.Fprintln(w, "BADGE\tSTATUS\tDESCRIPTION")
	for _, b := range badges {
		status := "earned"
		if !b.Earned {
			status = ProgressBar(quiz.BadgeProgress(b, s))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", b.Name, status, b.Description)
	}
	w.Flush()
}

// Status prints connectivity, where data lives and any interrupted cascade.
func Status(state, apiURL, mirrorPath string, pending []cascade.Marker) {
	w := newTable()
	fmt.Fprintf(w, "Server:\t%s (%s)\n", apiURL, state)
	fmt.Fprintf(w, "Mirror:\t%s\n", mirrorPath)
	if len(pending) == 0 {
		fmt.Fprintf(w, "Pending cascade:\tnone\n")
	}
	for _, m := range pending {
		fmt.Fprintf(w, "Pending cascade:\t%s, started %s (run \"sparkvibe repair\")\n", m.Op, RelativeTime(m.StartedAt))
	}
	w.Flush()
}

// Difficulty renders a 1-3 difficulty as a word.
func Difficulty(d int) string {
	switch d {
	case 1:
		return "easy"
	case 2:
		return "medium"
	case 3:
		return "hard"
	default:
		return "-"
	}
}

// ProgressBar renders current/target as a ten-cell bar, e.g. "[###-------] 3/10".
func ProgressBar(current, target int) string {
	if target <= 0 {
		return "-"
	}
	filled := current * 10 / target
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat("-", 10-filled), current, target)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n || n < 4 {
		return s
	}
	return string(r[:n-3]) + "..."
}

// RelativeTime formats a timestamp relative to now (e.g. "2h ago", "3d ago").
func RelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
