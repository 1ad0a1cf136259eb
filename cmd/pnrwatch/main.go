package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands
type GlobalFlags struct {
	ConfigPath string
}

// CheckFlags holds flags for the check command
type CheckFlags struct {
	References []string
	StatusFile string
}

// ShowFlags holds flags for the show command
type ShowFlags struct {
	Reference  string
	StatusFile string
	Output     string
}

// buildRoot creates the root command with all subcommands attached
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	checkFlags := &CheckFlags{}
	showFlags := &ShowFlags{}

	c := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createCheckCommand(c, checkFlags),
		createShowCommand(c, showFlags),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "pnrwatch",
		Short: "Train reservation (PNR) status watcher",
		Long: `pnrwatch checks the live status of a list of PNRs, keeps the latest
status of each in a JSON file and posts a chat message when the first
passenger's status changes.

Run it from cron or a systemd timer; every invocation is one pass.

Examples:
  pnrwatch check
  pnrwatch check --reference 8439632790 --reference 8239524689
  GOOGLE_CHAT_WEBHOOK=https://chat.googleapis.com/... pnrwatch check
  pnrwatch show --reference 8439632790`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML/YAML/JSON config file (optional)")

	return root
}

func createCheckCommand(c command, flags *CheckFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check every tracked PNR once",
		Long: `Fetch the status of each tracked PNR in order, update the status file
and notify on changes. Failed lookups are counted and do not change the exit
code; only a status file that cannot be read or written does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Check(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), *flags)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.References, "reference", "r", nil, "PNR to check (repeatable, overrides the configured list)")
	cmd.Flags().StringVar(&flags.StatusFile, "status-file", "", "status file path (overrides config)")

	return cmd
}

func createShowCommand(c command, flags *ShowFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Show(cmd.OutOrStdout(), cmd.ErrOrStderr(), *flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Reference, "reference", "r", "", "only print this PNR")
	cmd.Flags().StringVar(&flags.StatusFile, "status-file", "", "status file path (overrides config)")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "json", "output format: json or yaml")

	return cmd
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pnrwatch %s\n", version)
		},
	}
}
