// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

// setupParams implements `authctl setup`: a forced interactive renewal regardless of the
// current credential's validity. This is the remediation command named by every
// unrecoverable-failure error in the suite.
type setupParams struct {
	*rootParams
}

func (p *setupParams) cmd() *cobra.Command {
	return &cobra.Command{
		Args:         cobra.NoArgs,
		Use:          "setup",
		Short:        "Complete an interactive login in a visible browser window",
		SilenceUsage: true,
		RunE:         p.runE,
	}
}

func (p *setupParams) runE(cmd *cobra.Command, _ []string) error {
	gate, err := p.buildGate(p.siteName)
	if err != nil {
		return err
	}
	if err := gate.ForceInteractive(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("interactive login completed, session material saved")
	return nil
}
