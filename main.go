package main

import (
	"errors"
	"log"
	"os"

	"camshell/internal/backend"
	"camshell/internal/client"
	"camshell/internal/config"
	ui "camshell/internal/ui"

	"github.com/spf13/cobra"
)

var (
	devFlag    bool
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "camshell",
	Short: "Desktop shell for the local camera backend",
	Long: `Starts the camera backend process, waits for it to become healthy
and opens a window showing its video feed.

In development mode (--dev) the backend is run as a script under an
interpreter and the feed is served on the machine hostname instead of
loopback, so it stays reachable from other machines.`,
	RunE: runShell,
}

func init() {
	rootCmd.Flags().BoolVar(&devFlag, "dev", false, "Run the backend as a script under an interpreter")
	rootCmd.Flags().StringVar(&configFlag, "config", config.DefaultConfigPath, "Path to the config file")
}

func runShell(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfigFile(configFlag)
	if devFlag {
		cfg.Mode = config.ModeDev
	}

	sup := backend.NewSupervisor(cfg)

	// A previous session may have crashed and left its child behind.
	_ = sup.Sweep()

	if err := sup.Start(); err != nil {
		// The window still opens; the user sees the backend stay
		// disconnected and can read the reason here.
		var notFound *backend.NotFoundError
		if errors.As(err, &notFound) {
			log.Printf("backend not found: %v", notFound)
		} else {
			log.Printf("backend start failed: %v", err)
		}
	}

	cl := client.New(cfg, cfg.BaseURL())

	app := ui.CreateApp(sup, cl, cfg)
	app.Run()

	// The close intercept already ran Stop and Sweep; repeating them here
	// covers a window torn down without the intercept firing.
	_ = sup.Stop()
	_ = sup.Sweep()

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
