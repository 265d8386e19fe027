// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

// forceParams implements `authctl force`: the full silent-then-interactive renewal cycle,
// run unconditionally.
type forceParams struct {
	*rootParams
}

func (p *forceParams) cmd() *cobra.Command {
	return &cobra.Command{
		Args:         cobra.NoArgs,
		Use:          "force",
		Short:        "Renew the session now, silently when possible",
		SilenceUsage: true,
		RunE:         p.runE,
	}
}

func (p *forceParams) runE(cmd *cobra.Command, _ []string) error {
	gate, err := p.buildGate(p.siteName)
	if err != nil {
		return err
	}
	if err := gate.ForceRenew(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("session renewed")
	return nil
}
