package main

import (
	"github.com/spf13/cobra"

	"github.com/nathantilsley/update-agent/internal/platform/config"
)

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "update-agent",
		Short: "Reconcile cluster releases and pull secrets against a manifest",
		Long: `update-agent provisions container registry credentials as Kubernetes
secrets, binds them to service accounts, uninstalls retired Helm releases and
installs or upgrades current ones. Progress is reported to a callback endpoint.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "update-agent version %s\n" .Version}}`)

	root.AddCommand(newApplyCmd(cfg))
	root.AddCommand(newVersionCmd())
	return root
}
