// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/vpnkeeper/pkg/ux"
)

// version is the compiled-in VersionToken, set with
// -ldflags "-X main.version=1.0.6".
var version = "dev"

var (
	// global flags
	configPath       string
	personalityLevel string
	logLevel         string

	// keeper is built in PersistentPreRunE for commands that need it and
	// closed by main.
	keeper *app

	rootCmd = &cobra.Command{
		Use:   "vpnkeeper",
		Short: "Keeps the VPN client connected and itself up to date",
		Long: `vpnkeeper resets networking state, drives VPN connection attempts and
updates itself from its release URL before every state-changing command.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run:           runUnknown,
	}

	resetCmd = &cobra.Command{
		Use:   CommandReset.String(),
		Short: "Disconnect, restart networking, flush firewalls and restart the VPN service",
		Args:  cobra.ArbitraryArgs,
		RunE:  exact(runReset), // Defined in cmd_recovery.go
	}

	connectCmd = &cobra.Command{
		Use:   CommandConnect.String(),
		Short: "Connect the VPN; offer troubleshooting if it fails",
		Args:  cobra.ArbitraryArgs,
		RunE:  exact(runConnect), // Defined in cmd_recovery.go
	}

	bruteforceCmd = &cobra.Command{
		Use:   CommandBruteforce.String(),
		Short: "Repair and reconnect repeatedly until connected or the deadline passes",
		Args:  cobra.ArbitraryArgs,
		RunE:  exact(runBruteforce), // Defined in cmd_recovery.go
	}

	diagnoseCmd = &cobra.Command{
		Use:   CommandDiagnose.String(),
		Short: "Write a sampled diagnosis to the report file",
		Args:  cobra.ArbitraryArgs,
		RunE:  exact(runDiagnose), // Defined in cmd_diagnose.go
	}

	updateCmd = &cobra.Command{
		Use:   CommandUpdate.String(),
		Short: "Replace vpnkeeper with the latest release, without comparing versions",
		Args:  cobra.ArbitraryArgs,
		RunE:  exact(runUpdate), // Defined in cmd_update.go
	}

	checkUpdateCmd = &cobra.Command{
		Use:   CommandCheckUpdate.String(),
		Short: "Compare against the latest release and update if it differs",
		Args:  cobra.ArbitraryArgs,
		RunE:  exact(runCheckUpdate), // Defined in cmd_update.go
	}

	versionCmd = &cobra.Command{
		Use:   CommandVersion.String(),
		Short: "Print the compiled-in version",
		Args:  cobra.ArbitraryArgs,
		RunE: exact(func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		}),
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the config file (default ~/.vpnkeeper/vpnkeeper.yaml)")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard (default on a terminal), minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override logging.level: debug, info, warn or error")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		ux.InitPersonality(personalityLevel)

		if !resolveCommand(cmd, args).needsApp() {
			return nil
		}
		a, err := newAppFromFlags(cmd.Context())
		if err != nil {
			return err
		}
		keeper = a
		return nil
	}

	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(bruteforceCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(checkUpdateCmd)
	rootCmd.AddCommand(versionCmd)
}

// runUnknown handles the bare command and any word that is not a command.
// It prints usage and touches nothing else.
func runUnknown(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), usage())
}

// resolveCommand maps an invocation to a Command. Extra words after a
// command make the whole invocation unknown.
func resolveCommand(cmd *cobra.Command, args []string) Command {
	if len(args) > 0 {
		return CommandUnknown
	}
	return ParseCommand(cmd.Name())
}

// exact wraps a command's RunE so an invocation with extra words prints
// usage instead of running it.
func exact(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if resolveCommand(cmd, args) == CommandUnknown {
			runUnknown(cmd, args)
			return nil
		}
		return run(cmd, args)
	}
}
