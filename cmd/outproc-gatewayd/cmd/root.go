// Package cmd provides the CLI commands for the outprocess module gateway
// daemon.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentinelgate/outproc-gateway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "outproc-gatewayd",
	Short: "Outproc Gateway - out-of-process module gateway",
	Long: `outproc-gatewayd drives a single remote module through its
create/start/run/destroy lifecycle over a pair of control and message
sockets.

Quick start:
  1. Create a config file: outproc-gateway.yaml
  2. Run: outproc-gatewayd serve

Configuration:
  Config is loaded from outproc-gateway.yaml in the current directory,
  $HOME/.outproc-gateway/, or /etc/outproc-gateway/.

  Environment variables can override config values with the
  OUTPROC_GATEWAY_ prefix. Example: OUTPROC_GATEWAY_MODULE_CONTROL_URI=...

Commands:
  serve       Start the gateway and drive the configured module
  config show Print the effective configuration as YAML
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./outproc-gateway.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
