package cmd

import (
	"bufio"
	"errors"
	"strings"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/sparkvibe/sparkvibe/internal/quiz"
	"github.com/sparkvibe/sparkvibe/internal/validation"
	"github.com/spf13/cobra"
)

var (
	flagWindow string
	flagCSV    bool
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Quiz yourself; answers are read one per line from stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		cards, err := userCards(ctx, sess.ID, flagCategory)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			output.Println("No flashcards to quiz on.")
			return nil
		}
		history, err := resources.Progress.List(ctx, sess.ID)
		if err != nil {
			return err
		}

		session := quiz.NewSession(cards, history)
		in := bufio.NewScanner(cmd.InOrStdin())
		started := time.Now()

		for {
			card, ok := session.Next()
			if !ok {
				break
			}
			output.Println("\n[%d/%d] %s", session.Asked()+1, session.Len(), card.Question)

			var result quiz.Result
			for {
				if !in.Scan() {
					return finishQuiz(session, started)
				}
				result, err = recorder.Record(ctx, sess.ID, card, in.Text())
				if !errors.Is(err, validation.ErrValidation) {
					break
				}
				output.Println("Please enter an answer.")
			}
			if err != nil {
				output.Println("Failed to save progress: %s", describe(err))
				result.Correct, _ = quiz.CheckAnswer(card, in.Text())
			}

			answer := strings.TrimSpace(in.Text())
			session.Mark(card, answer, result.Correct)
			if result.Correct {
				output.Println("Correct!")
			} else {
				output.Println("Incorrect. The answer is: %s", card.Answer)
			}
			if result.BadgeEarned {
				output.Println("Badge earned: %s!", quiz.QuizMasterBadge)
			}
		}
		return finishQuiz(session, started)
	},
}

func finishQuiz(s *quiz.Session, started time.Time) error {
	elapsed := time.Since(started).Round(time.Second)
	if flagJSON {
		output.JSON(map[string]interface{}{
			"score":   s.Score,
			"asked":   s.Asked(),
			"total":   s.Len(),
			"seconds": int(elapsed.Seconds()),
			"missed":  s.Missed,
		})
		return nil
	}

	output.Println("\nScore: %d/%d in %s", s.Score, s.Asked(), elapsed)
	if len(s.Missed) > 0 {
		output.Println("Review:")
		for _, m := range s.Missed {
			output.Println("  %s -> %s (you said %q)", m.Card.Question, m.Card.Answer, m.Answer)
		}
	}
	return nil
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show your streak and results per category and per day",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		window, err := quiz.ParseWindow(flagWindow)
		if err != nil {
			return err
		}
		history, err := resources.Progress.List(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}

		summary := quiz.Summarize(history, window, time.Now())
		switch {
		case flagCSV:
			return quiz.WriteCSV(cmd.OutOrStdout(), summary)
		case flagJSON:
			output.JSON(summary)
		default:
			output.ProgressSummary(summary)
		}
		return nil
	},
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Show earned badges and progress toward the rest",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		badges, err := resources.Badges.List(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(badges)
			return nil
		}
		history, err := resources.Progress.List(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}
		output.BadgeTable(badges, quiz.Summarize(history, quiz.WindowAll, time.Now()))
		return nil
	},
}

func init() {
	quizCmd.Flags().StringVar(&flagCategory, "category", "", "Only cards of this category")

	progressCmd.Flags().StringVar(&flagWindow, "window", "all", "Per-day window: all, 7days or 30days")
	progressCmd.Flags().BoolVar(&flagCSV, "csv", false, "Write Category,Correct,Incorrect CSV")

	rootCmd.AddCommand(quizCmd, progressCmd, badgesCmd)
}
