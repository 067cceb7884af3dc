// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/anvilproject/drs-downloader/internal/logging"
	"github.com/anvilproject/drs-downloader/internal/manifest"
	"github.com/anvilproject/drs-downloader/internal/provider/gen3"
	"github.com/anvilproject/drs-downloader/internal/provider/mock"
	"github.com/anvilproject/drs-downloader/internal/provider/terra"
	"github.com/anvilproject/drs-downloader/pkg/drsdl"
)

// Execute runs the CLI with the given version string, grounded on the
// teacher's internal/cli/root.go cobra wiring.
func Execute(version string) error {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:           "drs-downloader",
		Short:         "Download GA4GH DRS objects referenced by a manifest",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.AddCommand(newMockCmd(ctx))
	root.AddCommand(newGen3Cmd(ctx))
	root.AddCommand(newTerraCmd(ctx))
	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newConfigCmd())
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newMockCmd(ctx context.Context) *cobra.Command {
	f := &commonFlags{}
	var count int

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Generate and download synthetic test objects locally, without a server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfigDefaults(cmd, f)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			objects := make([]*drsdl.Object, count)
			for i := range objects {
				id := fmt.Sprintf("mock-%d", i)
				objects[i] = drsdl.NewObject("drs://mock/"+id, id)
			}
			cl := mock.New(f.Destination, &drsdl.Statistics{})
			return runBatch(ctx, cl, objects, f)
		},
	}
	addCommonFlags(cmd, f)
	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of synthetic objects to generate")
	return cmd
}

func newGen3Cmd(ctx context.Context) *cobra.Command {
	f := &commonFlags{}
	var endpoint, apiKeyPath string

	cmd := &cobra.Command{
		Use:   "gen3",
		Short: "Copy files from a Gen3/Fence DRS deployment",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfigDefaults(cmd, f)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			objects, err := loadManifest(f)
			if err != nil {
				return err
			}
			stats := &drsdl.Statistics{}
			cl := gen3.New(endpoint, apiKeyPath, stats)
			return runBatch(ctx, cl, objects, f)
		},
	}
	addCommonFlags(cmd, f)
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Gen3/Fence base URL")
	cmd.Flags().StringVar(&apiKeyPath, "api-key", "", "Path to the Fence API-key JSON file")
	cmd.MarkFlagRequired("endpoint")
	cmd.MarkFlagRequired("api-key")
	return cmd
}

func newTerraCmd(ctx context.Context) *cobra.Command {
	f := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "terra",
		Short: "Copy files from Terra via the Martha DRS resolver",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return applyConfigDefaults(cmd, f)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			objects, err := loadManifest(f)
			if err != nil {
				return err
			}
			stats := &drsdl.Statistics{}
			cl := terra.New(stats)
			return runBatch(ctx, cl, objects, f)
		},
	}
	addCommonFlags(cmd, f)
	return cmd
}

func loadManifest(f *commonFlags) ([]*drsdl.Object, error) {
	if f.ManifestPath == "" {
		return nil, fmt.Errorf("--manifest is required")
	}
	uris, err := manifest.ReadFile(f.ManifestPath, f.DRSColumn)
	if err != nil {
		return nil, err
	}
	objects := make([]*drsdl.Object, len(uris))
	for i, uri := range uris {
		objects[i] = drsdl.NewObject(uri, idFromURI(uri))
	}
	return objects, nil
}

// idFromURI extracts the opaque id component from a drs://host/id URI.
func idFromURI(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' {
			return uri[i+1:]
		}
	}
	return uri
}

// runBatch wires a resolved Client and manifest-derived Objects through the
// logger and orchestrator, and prints the colorized per-object summary line
// (spec §4.4 Phase E).
func runBatch(ctx context.Context, cl drsdl.Client, objects []*drsdl.Object, f *commonFlags) error {
	if err := os.MkdirAll(f.Destination, 0o755); err != nil {
		return err
	}

	log, closeLog, err := logging.New(f.LogFile, f.Verbose, f.Quiet)
	if err != nil {
		return err
	}
	defer closeLog()

	settings := drsdl.NewSettings()
	settings.AllowDuplicate = f.Duplicate
	settings.UserProject = f.UserProject
	settings.Verbose = f.Verbose
	settings.StrictCleanup = f.StrictCleanup

	result, err := drsdl.RunBatch(ctx, log, cl, objects, f.Destination, settings)
	if err != nil {
		return err
	}

	isTerm := term.IsTerminal(int(os.Stdout.Fd()))
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	for _, o := range result.Objects {
		if o.Failed() {
			status := "ERROR"
			if isTerm {
				status = bad(status)
			}
			fmt.Printf("%s\t%s\t%d\t%v\n", o.Name, status, o.Size, o.Errors())
		} else {
			status := "OK"
			if isTerm {
				status = ok(status)
			}
			fmt.Printf("%s\t%s\t%d\n", o.Name, status, o.Size)
		}
	}
	fmt.Printf("%d/%d objects succeeded (peak open files: %d)\n", result.Succeeded(), len(result.Objects), result.PeakOpenFD)

	return result.Err()
}
