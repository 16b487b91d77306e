package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "jsonrpcd",
		Short:         "JSON-RPC session server with reconnection and ping watchdog",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	serve := newServeCmd()
	rootCmd.RunE = serve.RunE
	rootCmd.Flags().AddFlagSet(serve.Flags())

	rootCmd.AddCommand(serve, newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func serverFlags(fs *pflag.FlagSet) {
	fs.String("config-env", "", "config file suffix: config/config.<env>.yaml (default $CONFIG_ENV or dev)")
	fs.Int("port", 8080, "listen port")
	fs.String("log-level", "info", "zerolog level")
	fs.Duration("reconnection-timeout", 0, "grace period before a dropped session is closed")
	fs.Int("max-heartbeats", 0, "answer only the first N pings, 0 for unlimited (testing)")
	fs.Bool("ping-watchdog", true, "close sessions that stop pinging")
}
