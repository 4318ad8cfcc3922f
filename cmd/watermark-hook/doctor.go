// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the external tools and the stamp image are in place",
	Long: `Doctor verifies the configured markpdf binary is executable, the stamp
image and the occ console exist, and the php interpreter can be found.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// check is one doctor finding.
type check struct {
	name string
	err  error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	runner := command.NewRunner(nil, nil, 0)
	checks := runChecks(cfg, runner.LookPath)
	if failed := printChecks(os.Stdout, checks); failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

// runChecks inspects the configured resources. lookPath resolves bare
// program names.
func runChecks(cfg types.Config, lookPath func(string) (string, error)) []check {
	return []check{
		{name: "watermark binary " + cfg.Watermark.Binary, err: checkExecutable(cfg.Watermark.Binary, lookPath)},
		{name: "stamp image " + cfg.Watermark.Stamp, err: checkFile(cfg.Watermark.Stamp)},
		{name: "php interpreter " + cfg.Rescan.PHP, err: checkExecutable(cfg.Rescan.PHP, lookPath)},
		{name: "occ console " + cfg.Rescan.OCC, err: checkFile(cfg.Rescan.OCC)},
	}
}

func printChecks(w io.Writer, checks []check) int {
	failed := 0
	for _, c := range checks {
		if c.err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", c.name, c.err)
			continue
		}
		fmt.Fprintf(w, "ok    %s\n", c.name)
	}
	return failed
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	return nil
}

func checkExecutable(name string, lookPath func(string) (string, error)) error {
	path, err := lookPath(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
