package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hytun/internal/app"
)

var (
	appInstance *app.App
	version     = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hytun",
	Short: "hytun - Hysteria2 tunnel node manager",
	Long: `hytun - Hysteria2 tunnel node manager

  Manage Hysteria2 node profiles, generate client configs, and drive the
  hysteria systemd service from your terminal or over the web API.

  Quick start:
    hytun node add "hy2://password@server.example.com:443#MyNode"
    hytun node use <id>
    hytun status
    hytun serve`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appInstance, err = app.New()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil {
			return appInstance.Close()
		}
		return nil
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(subCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hytun %s\n", version)
	},
}
