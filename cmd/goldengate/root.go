package main

import (
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "goldengate",
		Short:   "Policy-driven HTTP reverse-proxy gateway",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to goldengate.conf (overrides the usual search order)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(genCredsCmd())
	root.AddCommand(cancelCmd())

	return root
}
