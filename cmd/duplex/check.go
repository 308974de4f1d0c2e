package main

import (
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		Long: `Load duplex.json, apply flag overrides and report the first problem.

Examples:
  duplex check
  duplex check --config deploy/duplex.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			if cfg.Path() != "" {
				success("%s is valid", cfg.Path())
			} else {
				success("defaults are valid")
			}
			info("address %s, %d session(s)", cfg.Address, len(cfg.WebSocket.Sessions))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
