// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dykim0518/makestar-e2e-tests/internal/tokenexpiry"
)

// autoParams implements `authctl auto`: the gating check run at the start of automated test
// runs. A valid stored session exits 0 without touching a browser; anything else attempts a
// renewal and the exit code reports the outcome.
type autoParams struct {
	*rootParams
}

func (p *autoParams) cmd() *cobra.Command {
	return &cobra.Command{
		Args:         cobra.NoArgs,
		Use:          "auto",
		Short:        "Gate an automated run: verify the session, renewing it if needed",
		SilenceUsage: true,
		RunE:         p.runE,
	}
}

func (p *autoParams) runE(cmd *cobra.Command, _ []string) error {
	gate, err := p.buildGate(p.siteName)
	if err != nil {
		return err
	}
	classification := gate.Classification()
	if classification == tokenexpiry.Valid {
		cmd.Println("session is valid")
		return nil
	}
	cmd.PrintErrf("session is %s, attempting renewal\n", classification.String())
	if err := gate.Ensure(cmd.Context()); err != nil {
		return err
	}
	cmd.Println("session renewed")
	return nil
}
