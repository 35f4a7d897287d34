package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/voicetime/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the voicetime configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		red := color.New(color.FgRed, color.Bold)
		red.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(os.Stdout, "Configuration is valid: %s\n", configPath)

	fmt.Fprintf(os.Stdout, "  storage:  %s (%s)\n", cfg.Storage.Type, cfg.Storage.Path)
	fmt.Fprintf(os.Stdout, "  timezone: %s\n", cfg.Tracking.Timezone)
	fmt.Fprintf(os.Stdout, "  channel:  #%s\n", cfg.Tracking.ChannelName)
	fmt.Fprintf(os.Stdout, "  gateway:  %s:%d\n", cfg.Server.BindAddress, cfg.Server.GatewayPort)
	fmt.Fprintf(os.Stdout, "  poster:   %s\n", cfg.Report.Poster)

	if cfg.Server.AuthToken == "" {
		yellow := color.New(color.FgYellow)
		yellow.Fprintln(os.Stdout, "warning: no auth_token configured, mutating routes are unauthenticated")
	}

	return nil
}
