package cmd

import (
	"fmt"

	"github.com/sparkvibe/sparkvibe/internal/config"
	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Show or persist settings",
	Annotations: map[string]string{noMirror: "true"},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show the effective settings",
	Annotations: map[string]string{noMirror: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagJSON {
			output.JSON(cfg)
			return nil
		}
		path, _ := config.Path()
		output.Println("config file:    %s", path)
		output.Println("api_url:        %s", cfg.APIURL)
		output.Println("timeout:        %s", cfg.Timeout)
		output.Println("probe_interval: %s", cfg.ProbeInterval)
		output.Println("data_dir:       %s", cfg.DataDir)
		output.Println("server.addr:    %s", cfg.Server.Addr)
		output.Println("server.dsn:     %s", cfg.Server.DSN)
		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:         "save",
	Short:       "Write the effective settings (including flags) to the config file",
	Example:     "  sparkvibe config save --api-url http://study.local:3001 --timeout 3s",
	Annotations: map[string]string{noMirror: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		path, _ := config.Path()
		output.Println("Saved %s.", path)
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Remove the config file",
	Annotations: map[string]string{noMirror: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Clear(); err != nil {
			return fmt.Errorf("removing config: %w", err)
		}
		output.Println("Config reset to defaults.")
		return nil
	},
}

func init() {
	configSaveCmd.Flags().Duration("probe-interval", 0, "How long a connectivity check stays valid (default 10s)")
	configCmd.AddCommand(configShowCmd, configSaveCmd, configResetCmd)
	rootCmd.AddCommand(configCmd)
}
