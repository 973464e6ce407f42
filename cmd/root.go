package cmd

import (
	"fmt"
	"io"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/auth"
	"github.com/sparkvibe/sparkvibe/internal/cascade"
	"github.com/sparkvibe/sparkvibe/internal/config"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/logger"
	"github.com/sparkvibe/sparkvibe/internal/mirror"
	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/sparkvibe/sparkvibe/internal/quiz"
	"github.com/sparkvibe/sparkvibe/internal/resource"
	"github.com/spf13/cobra"
)

// noMirror marks commands that run without opening the local mirror.
const noMirror = "no-mirror"

var (
	flagJSON    bool
	flagVerbose bool

	cfg       *config.Config
	store     *mirror.Store
	resources *resource.Client
	authSvc   *auth.Service
	cascades  *cascade.Coordinator
	recorder  *quiz.Recorder
)

var rootCmd = &cobra.Command{
	Use:   "sparkvibe",
	Short: "SparkVibe: study flashcards from the terminal, online or offline",
	Long: `SparkVibe keeps your flashcards, categories, quiz progress and badges on a
resource server and mirrors them locally, so everything keeps working while
the server is unreachable.

Get started:
  sparkvibe serve &                          Start a local resource server
  sparkvibe signup --name Ann --email a@x.com
  sparkvibe categories add Spanish
  sparkvibe cards add --category Spanish --question hola --answer hello
  sparkvibe quiz --category Spanish`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&flagJSON, "json", false, "Output as JSON")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "Write structured logs to stderr")
	flags.String("api-url", "", "Resource server URL (default: from config or "+config.DefaultURL+")")
	flags.Duration("timeout", 0, "Timeout for each request to the resource server (default 5s)")
	flags.String("data-dir", "", "Directory holding the local mirror")
}

func setup(cmd *cobra.Command, args []string) error {
	output.Stdout = cmd.OutOrStdout()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	var err error
	cfg, err = config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var logOut io.Writer = io.Discard
	if flagVerbose {
		logOut = cmd.ErrOrStderr()
	}
	logger.Init(logOut)

	if cmd.Annotations[noMirror] != "" {
		return nil
	}

	store, err = mirror.Open(cfg.MirrorPath())
	if err != nil {
		return err
	}
	remote := api.NewClient(cfg.APIURL, cfg.Timeout)
	monitor := connectivity.NewMonitor(connectivity.HTTPProbe{Client: remote}, cfg.ProbeInterval)
	resources = resource.NewClient(remote, store, monitor)
	authSvc = auth.NewService(resources)
	cascades = cascade.NewCoordinator(resources, authSvc)
	recorder = quiz.NewRecorder(resources)
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if store != nil {
		_ = store.Close()
		store = nil
	}
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", describe(err))
		return err
	}
	return nil
}

// currentUser returns the signed-in user or a hint to sign in.
func currentUser() (auth.Session, error) {
	sess, err := authSvc.Current()
	if err != nil {
		return auth.Session{}, fmt.Errorf("not signed in, run \"sparkvibe signin\" first")
	}
	return sess, nil
}
