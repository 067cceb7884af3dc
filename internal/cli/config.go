// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// commonFlags holds the flags shared by every provider subcommand (spec §6
// "Process surface" common flags), adapted from the teacher's
// internal/cli/config.go flag-default pattern.
type commonFlags struct {
	Destination   string
	ManifestPath  string
	DRSColumn     string
	Verbose       bool
	Quiet         bool
	Duplicate     bool
	UserProject   string
	LogFile       string
	StrictCleanup bool
}

func addCommonFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVarP(&f.Destination, "destination", "d", ".", "Destination directory")
	cmd.Flags().StringVarP(&f.ManifestPath, "manifest", "m", "", "Path to the manifest TSV file")
	cmd.Flags().StringVar(&f.DRSColumn, "drs-column", "", "Manifest column header containing the DRS URIs (default: first header containing \"uri\")")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose console output")
	cmd.Flags().BoolVarP(&f.Quiet, "quiet", "q", false, "Suppress info-level console output")
	cmd.Flags().BoolVar(&f.Duplicate, "duplicate", false, "Re-download and overwrite existing files instead of skipping them or renaming around a collision")
	cmd.Flags().StringVar(&f.UserProject, "user-project", "", "Billing project for requester-pays access")
	cmd.Flags().StringVar(&f.LogFile, "log-file", "drs_downloader.log", "Per-invocation log file (truncated at start)")
	cmd.Flags().BoolVar(&f.StrictCleanup, "strict-cleanup", false, "Delete an object's leftover part files after a download attempt fails, instead of retaining them for resume")
}

// DefaultConfig returns the default configuration file contents written by
// `config init`.
func DefaultConfig() map[string]any {
	return map[string]any{
		"destination":    ".",
		"drs-column":     "",
		"duplicate":      false,
		"user-project":   "",
		"log-file":       "drs_downloader.log",
		"strict-cleanup": false,
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func configPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "drs-downloader.yaml")
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Long: `Creates a default configuration file at ~/.config/drs-downloader.yaml.

The configuration file sets default values for the common flags shared by
every provider subcommand. CLI flags always override config file values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("could not create config directory: %w", err)
			}
			data, err := yaml.Marshal(DefaultConfig())
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("could not write config file: %w", err)
			}
			fmt.Printf("Created config file: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Println("No config file found.")
				fmt.Printf("Run 'drs-downloader config init' to create one at:\n  %s\n", path)
				return nil
			}
			fmt.Printf("Config file: %s\n\n", path)
			fmt.Println(string(data))
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(configPath())
		},
	}
}

// applyConfigDefaults loads ~/.config/drs-downloader.yaml (if present) and
// fills in any commonFlags field whose flag was not explicitly set on the
// command line, mirroring the teacher's applySettingsDefaults precedence
// (flags beat config file beat built-in defaults).
func applyConfigDefaults(cmd *cobra.Command, f *commonFlags) error {
	path := configPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}

	setStr := func(flagName string, set func(string)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			set(strings.TrimSpace(fmt.Sprint(v)))
		}
	}
	setBool := func(flagName string, set func(bool)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			if b, ok := v.(bool); ok {
				set(b)
			}
		}
	}

	setStr("destination", func(v string) { f.Destination = v })
	setStr("drs-column", func(v string) { f.DRSColumn = v })
	setStr("user-project", func(v string) { f.UserProject = v })
	setStr("log-file", func(v string) { f.LogFile = v })
	setBool("duplicate", func(v bool) { f.Duplicate = v })
	setBool("strict-cleanup", func(v bool) { f.StrictCleanup = v })

	return nil
}
