package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/sparkvibe/sparkvibe/internal/resource"
	"github.com/spf13/cobra"
)

var (
	flagCategory   string
	flagQuestion   string
	flagAnswer     string
	flagDifficulty int
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage flashcards",
}

var cardsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your flashcards",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		cards, err := userCards(cmd.Context(), sess.ID, flagCategory)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(cards)
			return nil
		}
		output.CardTable(cards)
		return nil
	},
}

var cardsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a flashcard",
	Long: `Create a flashcard in one of your categories.

  sparkvibe cards add --category Spanish --question hola --answer hello --difficulty 1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		category, err := resolveCategory(cmd.Context(), sess.ID, flagCategory)
		if err != nil {
			return err
		}
		created, err := resources.Flashcards.Create(cmd.Context(), api.Flashcard{
			Question:   strings.TrimSpace(flagQuestion),
			Answer:     strings.TrimSpace(flagAnswer),
			Category:   category,
			UserID:     sess.ID,
			Difficulty: flagDifficulty,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(created)
			return nil
		}
		output.Println("Created flashcard %s.", created.ID)
		return nil
	},
}

var cardsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a flashcard's question, answer, category or difficulty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		if _, err := ownedCard(cmd.Context(), sess.ID, args[0]); err != nil {
			return err
		}
		patch := resource.Patch{}
		flags := cmd.Flags()
		if flags.Changed("question") {
			patch["question"] = strings.TrimSpace(flagQuestion)
		}
		if flags.Changed("answer") {
			patch["answer"] = strings.TrimSpace(flagAnswer)
		}
		if flags.Changed("difficulty") {
			patch["difficulty"] = flagDifficulty
		}
		if flags.Changed("category") {
			category, err := resolveCategory(cmd.Context(), sess.ID, flagCategory)
			if err != nil {
				return err
			}
			patch["category"] = category
		}
		if len(patch) == 0 {
			return fmt.Errorf("nothing to change; pass --question, --answer, --category or --difficulty")
		}
		for _, field := range []string{"question", "answer"} {
			if v, ok := patch[field]; ok && v == "" {
				return fmt.Errorf("%s cannot be blank", field)
			}
		}

		updated, err := resources.Flashcards.Update(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(updated)
			return nil
		}
		output.Println("Updated flashcard %s.", updated.ID)
		return nil
	},
}

var cardsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a flashcard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		if _, err := ownedCard(cmd.Context(), sess.ID, args[0]); err != nil {
			return err
		}
		if err := resources.Flashcards.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.Println("Deleted flashcard %s.", args[0])
		return nil
	},
}

// ownedCard loads one of the user's flashcards. Cards of other users are
// reported as not found.
func ownedCard(ctx context.Context, userID, id string) (api.Flashcard, error) {
	card, err := resources.Flashcards.Get(ctx, id)
	if err != nil {
		return api.Flashcard{}, err
	}
	if card.UserID != userID {
		return api.Flashcard{}, fmt.Errorf("%w: flashcard %s", resource.ErrNotFound, id)
	}
	return card, nil
}

// userCards lists the user's cards, optionally only those of one category.
func userCards(ctx context.Context, userID, category string) ([]api.Flashcard, error) {
	cards, err := resources.Flashcards.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return cards, nil
	}
	filtered := cards[:0]
	for _, c := range cards {
		if strings.EqualFold(c.Category, strings.TrimSpace(category)) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// resolveCategory returns the stored spelling of one of the user's categories.
func resolveCategory(ctx context.Context, userID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("--category is required")
	}
	categories, err := resources.Categories.List(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, c := range categories {
		if resource.NameTaken([]api.Category{c}, name, "") {
			return c.Name, nil
		}
	}
	return "", fmt.Errorf("no category named %q; create it with \"sparkvibe categories add\"", name)
}

func init() {
	cardsLsCmd.Flags().StringVar(&flagCategory, "category", "", "Only cards of this category")

	for _, c := range []*cobra.Command{cardsAddCmd, cardsEditCmd} {
		c.Flags().StringVar(&flagCategory, "category", "", "Category name")
		c.Flags().StringVar(&flagQuestion, "question", "", "Question text")
		c.Flags().StringVar(&flagAnswer, "answer", "", "Answer text")
		c.Flags().IntVar(&flagDifficulty, "difficulty", 1, "Difficulty: 1 easy, 2 medium, 3 hard")
	}

	cardsCmd.AddCommand(cardsLsCmd, cardsAddCmd, cardsEditCmd, cardsRmCmd)
	rootCmd.AddCommand(cardsCmd)
}
