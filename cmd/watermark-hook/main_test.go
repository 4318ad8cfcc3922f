// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/watermark-hook/pkg/types"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("required flag(s) \"file_id\" not set")))
	assert.Equal(t, 3, exitCode(&exitError{code: 3, err: errors.New("markpdf exited with status 3")}))
	assert.Equal(t, 1, exitCode(&exitError{code: -1, err: errors.New("killed")}))
	assert.Equal(t, 4, exitCode(fmt.Errorf("hook: %w", &exitError{code: 4, err: errors.New("x")})))
}

func TestDecodeConfigDefaults(t *testing.T) {
	v := viper.New()
	configureViper(v)

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestDecodeConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watermark-hook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
watermark:
  binary: /opt/markpdf
  stamp: /opt/confidential.png
rescan:
  occ: /srv/nextcloud/occ
  shallow: false
command_timeout: 90s
watch:
  debounce: 500ms
`), 0o644))
	t.Setenv("WATERMARK_HOOK_RESCAN_PHP", "/usr/bin/php8.2")

	v := viper.New()
	configureViper(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/opt/markpdf", cfg.Watermark.Binary)
	assert.Equal(t, "/opt/confidential.png", cfg.Watermark.Stamp)
	assert.Equal(t, "/srv/nextcloud/occ", cfg.Rescan.OCC)
	assert.Equal(t, "/usr/bin/php8.2", cfg.Rescan.PHP)
	assert.False(t, cfg.Rescan.Shallow)
	assert.Equal(t, 90*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
}

func TestReadConfig(t *testing.T) {
	t.Run("explicit file must exist", func(t *testing.T) {
		err := readConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config")
	})

	t.Run("explicit file must parse", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("watermark: [unclosed\n"), 0o644))
		assert.Error(t, readConfig(viper.New(), path))
	})

	t.Run("default locations are optional", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())
		v := viper.New()
		require.NoError(t, readConfig(v, ""))
		assert.Equal(t, types.DefaultConfig().Watermark.Binary, v.GetString("watermark.binary"))
	})

	t.Run("explicit file is read", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "hook.yaml")
		require.NoError(t, os.WriteFile(path, []byte("watermark:\n  binary: /opt/markpdf\n"), 0o644))
		v := viper.New()
		require.NoError(t, readConfig(v, path))
		assert.Equal(t, "/opt/markpdf", v.GetString("watermark.binary"))
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
		errMsg string
	}{
		{name: "defaults valid", mutate: func(*types.Config) {}},
		{name: "missing binary", mutate: func(c *types.Config) { c.Watermark.Binary = "" }, errMsg: "watermark.binary"},
		{name: "blank occ", mutate: func(c *types.Config) { c.Rescan.OCC = "  " }, errMsg: "rescan.occ"},
		{name: "negative timeout", mutate: func(c *types.Config) { c.CommandTimeout = -time.Second }, errMsg: "command_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultConfig()
			tt.mutate(&cfg)
			err := validateConfig(cfg)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRunChecks(t *testing.T) {
	dir := t.TempDir()
	markpdf := filepath.Join(dir, "markpdf")
	require.NoError(t, os.WriteFile(markpdf, []byte("#!/bin/sh\n"), 0o755))
	stamp := filepath.Join(dir, "watermark.png")
	require.NoError(t, os.WriteFile(stamp, []byte("png"), 0o644))

	cfg := types.DefaultConfig()
	cfg.Watermark.Binary = markpdf
	cfg.Watermark.Stamp = stamp
	cfg.Rescan.PHP = "php"
	cfg.Rescan.OCC = filepath.Join(dir, "missing-occ")

	lookPath := func(name string) (string, error) {
		if filepath.IsAbs(name) {
			return name, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}

	checks := runChecks(cfg, lookPath)
	var out bytes.Buffer
	failed := printChecks(&out, checks)

	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "ok    watermark binary "+markpdf)
	assert.Contains(t, out.String(), "ok    stamp image "+stamp)
	assert.Contains(t, out.String(), "FAIL  php interpreter php")
	assert.Contains(t, out.String(), "FAIL  occ console")
}

func TestCheckExecutableRejectsPlainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markpdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := checkExecutable(path, func(n string) (string, error) { return n, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not executable")
}

func TestFormatHistory(t *testing.T) {
	recs := []types.FileRecord{
		{Path: "/data/a.pdf", Status: types.StatusWatermarked, UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Path: "/data/b.pdf", Status: types.StatusFailed, Message: "markpdf exited with status 1"},
	}

	var table bytes.Buffer
	require.NoError(t, formatHistory(&table, recs, false))
	assert.Contains(t, table.String(), "Status       Updated              Path\n")
	assert.Contains(t, table.String(), "watermarked  2026-01-02 03:04:05  /data/a.pdf\n")
	assert.Contains(t, table.String(), "failed       -                    /data/b.pdf  (markpdf exited with status 1)")
	assert.NotContains(t, table.String(), "0001-01-01")
	assert.Contains(t, table.String(), "2 files")

	var empty bytes.Buffer
	require.NoError(t, formatHistory(&empty, nil, false))
	assert.Equal(t, "No files recorded.\n", empty.String())

	var js bytes.Buffer
	require.NoError(t, formatHistory(&js, nil, true))
	assert.Equal(t, "[]\n", js.String())
}

func TestParseStatus(t *testing.T) {
	st, err := parseStatus("failed")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, st)

	st, err = parseStatus("stamped")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStamped, st)

	_, err = parseStatus("pending")
	assert.Error(t, err)
}

// writeScript creates an executable shell script that appends its name and
// arguments to $FAKE_CALLS and exits with the status in exitVar (default 0).
func writeScript(t *testing.T, dir, name, exitVar string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	body := fmt.Sprintf("#!/bin/sh\necho \"%s $*\" >> \"$FAKE_CALLS\"\nexit ${%s:-0}\n", name, exitVar)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func hookArgs(local, rel string) []string {
	return []string{
		"--event_type", `\OCP\Files::postWrite`,
		"--file_id", "77",
		"--actor_user_id", "alice",
		"--owner_user_id", "alice",
		"--nextcloud_relative_path", rel,
		"--locally_available_file", local,
		"--old_nextcloud_relative_file_path", "",
		"--log-level", "error",
	}
}

func setupFakeTools(t *testing.T) (calls string) {
	t.Helper()
	dir := t.TempDir()
	calls = filepath.Join(dir, "calls.log")
	t.Setenv("FAKE_CALLS", calls)
	t.Setenv("WATERMARK_HOOK_WATERMARK_BINARY", writeScript(t, dir, "markpdf", "MARK_EXIT"))
	t.Setenv("WATERMARK_HOOK_WATERMARK_STAMP", "/opt/watermark.png")
	t.Setenv("WATERMARK_HOOK_RESCAN_PHP", writeScript(t, dir, "php", "PHP_EXIT"))
	t.Setenv("WATERMARK_HOOK_RESCAN_OCC", "/srv/occ")
	t.Setenv("WATERMARK_HOOK_STATE_DIR", filepath.Join(dir, "state"))
	return calls
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestHookEndToEnd(t *testing.T) {
	calls := setupFakeTools(t)

	rootCmd.SetArgs(hookArgs("/data/__groupfolders/42/sub/dir/q1.pdf", "__groupfolders/42/sub/dir/q1.pdf"))
	err := rootCmd.Execute()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"markpdf /data/__groupfolders/42/sub/dir/q1.pdf /opt/watermark.png /data/__groupfolders/42/sub/dir/q1.pdf -c",
		"php /srv/occ files:scan --path sub/dir --shallow",
	}, readCalls(t, calls))
}

func TestHookSkipsNonPDF(t *testing.T) {
	calls := setupFakeTools(t)

	rootCmd.SetArgs(hookArgs("/data/alice/files/notes.txt", "alice/files/notes.txt"))
	require.NoError(t, rootCmd.Execute())
	assert.Empty(t, readCalls(t, calls))
}

func TestHookPropagatesWatermarkExitCode(t *testing.T) {
	calls := setupFakeTools(t)
	t.Setenv("MARK_EXIT", "3")

	rootCmd.SetArgs(hookArgs("/data/alice/files/q1.pdf", "alice/files/q1.pdf"))
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))

	got := readCalls(t, calls)
	require.Len(t, got, 1, "rescan must not run after a failed watermark")
	assert.True(t, strings.HasPrefix(got[0], "markpdf "))
}

// resetFlags restores every root flag to its default. cobra keeps parsed
// values and the Changed mark between Execute calls on the same command.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	}
	rootCmd.Flags().VisitAll(reset)
	rootCmd.PersistentFlags().VisitAll(reset)
}

func TestHookRejectsMissingFlag(t *testing.T) {
	calls := setupFakeTools(t)
	resetFlags(t)
	t.Cleanup(func() { resetFlags(t) })

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() { rootCmd.SetErr(nil) })

	args := hookArgs("/data/alice/files/q1.pdf", "alice/files/q1.pdf")
	i := slices.Index(args, "--file_id")
	require.GreaterOrEqual(t, i, 0)
	args = slices.Delete(args, i, i+2)

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"file_id"`)
	assert.Equal(t, 1, exitCode(err))
	assert.Empty(t, readCalls(t, calls), "no command may run on a usage error")
}
