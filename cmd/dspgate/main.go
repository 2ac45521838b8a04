// dspgate is a long-lived gateway between a Biamp Tesira Text Protocol DSP
// and a REST API for building-automation clients.
//
// Usage:
//
//	dspgate serve --config dspgate.yaml
//	dspgate version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/enp6s0/dspgate/pkg/version"
)

// App holds CLI state shared across subcommands.
type App struct {
	configPath string
	verbose    bool
	jsonLog    bool
}

var app = &App{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dspgate",
	Short: "Gateway between a Tesira Text Protocol DSP and a REST API",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "dspgate.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&app.jsonLog, "json-log", false, "emit logs as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Info())
		return nil
	},
}
