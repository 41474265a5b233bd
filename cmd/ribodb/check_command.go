package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ribodb/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check paths and external programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			failures := 0
			fmt.Fprintln(out, renderSectionHeader("Paths", colorize))
			for _, r := range preflight.RunAll(cmd.Context(), cfg) {
				kind := checkOK
				if !r.Passed {
					kind = checkFailed
					failures++
				}
				fmt.Fprintln(out, renderCheckLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Programs", colorize))
			for _, s := range preflight.CheckSystemDeps(cfg) {
				kind := checkOK
				detail := s.Path
				if !s.Available {
					detail = strings.TrimSpace(s.Detail + "; " + s.Description)
					if s.Optional {
						kind = checkWarn
					} else {
						kind = checkFailed
						failures++
					}
				}
				fmt.Fprintln(out, renderCheckLine(s.Name, kind, detail, colorize))
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
