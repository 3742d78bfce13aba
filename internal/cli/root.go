package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/TheBase/TheBase/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  _____ _            ____\n" +
		" |_   _| |__   ___  | __ )  __ _ ___  ___\n" +
		"   | | | '_ \\ / _ \\ |  _ \\ / _` / __|/ _ \\\n" +
		"   | | | | | |  __/ | |_) | (_| \\__ \\  __/\n" +
		"   |_| |_| |_|\\___| |____/ \\__,_|___/\\___|\n"
)

var rootCmd = &cobra.Command{
	Use:   "thebase",
	Short: "The Base - activity dashboard for your bot",
	Long:  color.CyanString(logo) + "\nIngests logs, status, cron and memory snapshots from the bot and serves the dashboard API.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(calendarCmd)
}
