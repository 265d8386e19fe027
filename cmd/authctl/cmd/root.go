// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cmd implements the authctl command tree. authctl manages the shared test
// credential: the default invocation renews only when the stored session is invalid, and the
// subcommands force the individual renewal strategies.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dykim0518/makestar-e2e-tests/internal/authstore"
	"github.com/dykim0518/makestar-e2e-tests/internal/failureflag"
	"github.com/dykim0518/makestar-e2e-tests/internal/plog"
	"github.com/dykim0518/makestar-e2e-tests/internal/renewal"
	"github.com/dykim0518/makestar-e2e-tests/internal/sites"
	"github.com/dykim0518/makestar-e2e-tests/internal/tokenexpiry"
)

// sessionGate is the slice of *renewal.Gate the commands need; tests substitute fakes.
type sessionGate interface {
	Ensure(ctx context.Context) error
	ForceRenew(ctx context.Context) error
	ForceInteractive(ctx context.Context) error
	Classification() tokenexpiry.Classification
}

// rootParams carries the persistent flags and the mockable production wiring.
type rootParams struct {
	logLevel string
	siteName string

	// buildGate captures the production wiring so tests can substitute a fake gate.
	buildGate func(siteName string) (sessionGate, error)
}

//nolint:gochecknoglobals
var root = newRootParams()

func newRootParams() *rootParams {
	return &rootParams{buildGate: buildProductionGate}
}

func buildProductionGate(siteName string) (sessionGate, error) {
	site, err := siteByName(siteName)
	if err != nil {
		return nil, err
	}
	dir, err := sites.StateDir()
	if err != nil {
		return nil, fmt.Errorf("could not resolve state directory: %w", err)
	}
	store := authstore.New(dir, authstore.WithErrorReporter(func(err error) {
		plog.WarningErr("state file unreadable, treating as absent", err)
	}))
	return renewal.NewGate(site, store, failureflag.New(dir), dir), nil
}

func siteByName(name string) (sites.Site, error) {
	for _, site := range sites.All {
		if site.Name == name {
			return site, nil
		}
	}
	return sites.Site{}, fmt.Errorf("unknown site %q, valid choices are main, studio and admin", name)
}

func (p *rootParams) cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authctl",
		Short: "Manage the shared e2e test credential",
		Long: "authctl manages the credential and session material shared by the e2e test workers.\n" +
			"Without a subcommand it renews the session only when the stored one is invalid.",
		SilenceUsage: true, // do not print usage message when commands fail
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			flush, err := plog.Setup(plog.LogLevel(p.logLevel))
			if err != nil {
				return err
			}
			cobra.OnFinalize(flush)
			return nil
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gate, err := p.buildGate(p.siteName)
			if err != nil {
				return err
			}
			if err := gate.Ensure(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("session is valid")
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&p.logLevel, "log-level", "",
		"Log level (debug, info, warning). Empty means warning.")
	cmd.PersistentFlags().StringVar(&p.siteName, "site", sites.Main.Name,
		"Which site's session to manage (main, studio, admin).")
	return cmd
}

// Execute builds and runs the full command tree. Called by main.main().
func Execute() error {
	rootCmd := root.cmd()
	rootCmd.AddCommand(
		(&setupParams{rootParams: root}).cmd(),
		(&forceParams{rootParams: root}).cmd(),
		(&autoParams{rootParams: root}).cmd(),
	)
	return rootCmd.Execute()
}
