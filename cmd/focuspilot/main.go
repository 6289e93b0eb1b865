package main

import (
	"fmt"
	"os"
	"time"

	"github.com/loykin/focuspilot/pkg/client"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every subcommand
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// ServeFlags holds flags for the serve command
type ServeFlags struct {
	ConfigPath string
	Daemonize  bool
	PidFile    string
	LogFile    string
}

// StatsFlags holds flags for the stats command
type StatsFlags struct {
	JSON bool
}

// FocusFlags holds flags for the focus command
type FocusFlags struct {
	Minutes int
}

// SnoozeFlags holds flags for the snooze command
type SnoozeFlags struct {
	Duration time.Duration
}

// EventFlags holds flags for the event subcommands
type EventFlags struct {
	TabID    int
	WindowID int
	URL      string
}

// buildRoot creates the root command and wires every subcommand
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	fc := &command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createStatsCommand(fc),
		createResetCommand(fc),
		createDashboardCommand(fc),
		createSettingsCommand(fc),
		createFocusCommand(fc),
		createSnoozeCommand(fc),
		createStateCommand(fc),
		createAssessCommand(fc),
		createEventCommand(fc),
		createConfigCommand(fc, globalFlags),
	)
	return root
}

// createRootCommand creates the root command with persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "focuspilot",
		Short: "Activity tracking and distraction reminders",
		Long: `FocusPilot records how long you stay on each site, scores how
distracted you are and nudges you when focus slips.

Examples:
  focuspilot serve focuspilot.toml   # Start the daemon
  focuspilot stats                   # Summary of the last 24 hours
  focuspilot focus --minutes=25      # Start a focus session
  focuspilot stats --api-url=http://remote:8787/api`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to config file (TOML, YAML or JSON)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", client.DefaultBaseURL, "daemon API URL")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")

	return root
}

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the focuspilot daemon",
		Long: `Start the daemon: the activity tracker, the periodic assessment and
the HTTP API used by the browser bridge and the CLI.

Examples:
  focuspilot serve                       # Built-in defaults plus FOCUSPILOT_* env
  focuspilot serve focuspilot.toml       # Start with a config file
  focuspilot serve --daemonize --logfile=/tmp/focuspilot.out`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serveFlags.ConfigPath = globalFlags.ConfigPath
			if len(args) > 0 {
				serveFlags.ConfigPath = args[0]
			}
			if serveFlags.Daemonize {
				return daemonize(serveFlags.PidFile, serveFlags.LogFile)
			}
			return runServe(cmd.Context(), serveFlags, waitForSignal)
		},
	}

	cmd.Flags().BoolVar(&serveFlags.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&serveFlags.PidFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().StringVar(&serveFlags.LogFile, "logfile", "", "redirect daemon output to file")

	return cmd
}

// createStatsCommand creates the stats subcommand
func createStatsCommand(fc *command) *cobra.Command {
	flags := &StatsFlags{}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show focus statistics for the last 24 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.Stats(cmd, *flags)
		},
	}
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print raw JSON")
	return cmd
}

// createResetCommand creates the reset subcommand
func createResetCommand(fc *command) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every recorded focus event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.Reset(cmd)
		},
	}
}

// createDashboardCommand creates the dashboard subcommand
func createDashboardCommand(fc *command) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the dashboard page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.Dashboard(cmd)
		},
	}
}

// createSettingsCommand creates the settings subcommand
func createSettingsCommand(fc *command) *cobra.Command {
	var sites bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Open the settings page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.Settings(cmd, sites)
		},
	}
	cmd.Flags().BoolVar(&sites, "sites", false, "open the productive sites section")
	return cmd
}

// createFocusCommand creates the focus subcommand
func createFocusCommand(fc *command) *cobra.Command {
	flags := &FocusFlags{}
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Start a focus session",
		Long: `Start a focus session lasting the given number of minutes.

Examples:
  focuspilot focus --minutes=25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.Focus(cmd, *flags)
		},
	}
	cmd.Flags().IntVar(&flags.Minutes, "minutes", 25, "session length in minutes")
	return cmd
}

// createSnoozeCommand creates the snooze subcommand
func createSnoozeCommand(fc *command) *cobra.Command {
	flags := &SnoozeFlags{}
	cmd := &cobra.Command{
		Use:   "snooze",
		Short: "Silence reminders for a while",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.Snooze(cmd, *flags)
		},
	}
	cmd.Flags().DurationVar(&flags.Duration, "duration", 0, "snooze length (daemon default when zero)")
	return cmd
}

// createStateCommand creates the state subcommand
func createStateCommand(fc *command) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the tracked tab and known tabs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.State(cmd)
		},
	}
}

// createAssessCommand creates the assess subcommand
func createAssessCommand(fc *command) *cobra.Command {
	return &cobra.Command{
		Use:   "assess",
		Short: "Run one distraction assessment now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.Assess(cmd)
		},
	}
}

// createEventCommand creates the event command used to feed browser events by hand
func createEventCommand(fc *command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Send a browser activity event to the daemon",
		Long: `Send tab and idle events the way the browser bridge does.

Examples:
  focuspilot event activated --tab=3 --window=1 --url=https://github.com
  focuspilot event updated --tab=3 --url=https://news.ycombinator.com
  focuspilot event removed --tab=3
  focuspilot event idle locked`,
	}

	activated := &EventFlags{}
	activatedCmd := &cobra.Command{
		Use:   "activated",
		Short: "A tab became active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.EventActivated(cmd, *activated)
		},
	}
	activatedCmd.Flags().IntVar(&activated.TabID, "tab", -1, "tab id (required)")
	activatedCmd.Flags().IntVar(&activated.WindowID, "window", 0, "window id")
	activatedCmd.Flags().StringVar(&activated.URL, "url", "", "tab URL")
	mustRequire(activatedCmd, "tab")

	updated := &EventFlags{}
	updatedCmd := &cobra.Command{
		Use:   "updated",
		Short: "A tab navigated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.EventUpdated(cmd, *updated)
		},
	}
	updatedCmd.Flags().IntVar(&updated.TabID, "tab", -1, "tab id (required)")
	updatedCmd.Flags().StringVar(&updated.URL, "url", "", "new URL (required)")
	mustRequire(updatedCmd, "tab")
	mustRequire(updatedCmd, "url")

	removed := &EventFlags{}
	removedCmd := &cobra.Command{
		Use:   "removed",
		Short: "A tab was closed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.EventRemoved(cmd, *removed)
		},
	}
	removedCmd.Flags().IntVar(&removed.TabID, "tab", -1, "tab id (required)")
	mustRequire(removedCmd, "tab")

	idleCmd := &cobra.Command{
		Use:       "idle <active|idle|locked>",
		Short:     "The OS idle state changed",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{client.IdleActive, client.IdleIdle, client.IdleLocked},
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.EventIdle(cmd, args[0])
		},
	}

	cmd.AddCommand(activatedCmd, updatedCmd, removedCmd, idleCmd)
	return cmd
}

// createConfigCommand creates the config command
func createConfigCommand(fc *command, globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show [config.toml]",
		Short: "Print the effective daemon configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return showConfig(cmd.OutOrStdout(), path)
		},
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the focus settings the daemon is using",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.ConfigGet(cmd)
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <json>",
		Short: "Merge a JSON settings object into the daemon settings",
		Long: `Merge a JSON settings object into the daemon settings.

Examples:
  focuspilot config set '{"distractionSwitchThreshold":5}'
  focuspilot config set '{"productiveDomains":["github.com","go.dev"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fc.ConfigSet(cmd, args[0])
		},
	}

	cmd.AddCommand(showCmd, getCmd, setCmd)
	return cmd
}

func mustRequire(cmd *cobra.Command, name string) {
	if err := cmd.MarkFlagRequired(name); err != nil {
		panic(err)
	}
}
