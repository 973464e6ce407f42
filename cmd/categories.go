package cmd

import (
	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"cat"},
	Short:   "Manage categories",
}

var categoriesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List your categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		categories, err := resources.Categories.List(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(categories)
			return nil
		}
		cards, err := resources.Flashcards.List(cmd.Context(), sess.ID)
		if err != nil {
			return err
		}
		output.CategoryTable(categories, cards)
		return nil
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		created, err := resources.CreateCategory(cmd.Context(), api.Category{Name: args[0], UserID: sess.ID})
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(created)
			return nil
		}
		output.Println("Created category %q (%s).", created.Name, created.ID)
		return nil
	},
}

var categoriesRenameCmd = &cobra.Command{
	Use:   "rename <id> <new-name>",
	Short: "Rename a category and move its cards and quiz results along",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		renamed, err := cascades.RenameCategory(cmd.Context(), args[0], args[1], sess.ID)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(renamed)
			return nil
		}
		output.Println("Renamed category to %q.", renamed.Name)
		return nil
	},
}

var categoriesRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a category with its cards, quiz results and badges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		if err := cascades.DeleteCategory(cmd.Context(), args[0], sess.ID); err != nil {
			return err
		}
		output.Println("Deleted category %s.", args[0])
		return nil
	},
}

func init() {
	categoriesCmd.AddCommand(categoriesLsCmd, categoriesAddCmd, categoriesRenameCmd, categoriesRmCmd)
	rootCmd.AddCommand(categoriesCmd)
}
