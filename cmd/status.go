package cmd

import (
	"github.com/sparkvibe/sparkvibe/internal/cascade"
	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is reachable and any interrupted cascade",
	RunE: func(cmd *cobra.Command, args []string) error {
		state := resources.Monitor.Check(cmd.Context())
		pending, err := cascade.Pending(store)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(map[string]interface{}{
				"state":   state.String(),
				"apiUrl":  cfg.APIURL,
				"mirror":  cfg.MirrorPath(),
				"pending": pending,
			})
			return nil
		}
		output.Status(state.String(), cfg.APIURL, cfg.MirrorPath(), pending)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Finish a rename or delete that was interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		done, err := cascades.Resume(cmd.Context())
		if err != nil {
			return err
		}
		left, err := cascade.Pending(store)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(map[string]interface{}{"completed": done, "pending": left})
			return nil
		}
		for _, m := range done {
			output.Println("Finished %s started %s.", m.Op, output.RelativeTime(m.StartedAt))
		}
		switch {
		case len(left) > 0:
			output.Println("%d cascade(s) still wait for the server; run repair again once it is reachable.", len(left))
		case len(done) == 0:
			output.Println("Nothing to repair.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, repairCmd)
}
