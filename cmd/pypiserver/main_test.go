// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
	"github.com/bureau-foundation/pypiserver/lib/testutil"
)

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"--version"}, &stdout); err != nil {
		t.Fatalf("run --version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "pypiserver ") {
		t.Errorf("--version output = %q", stdout.String())
	}
}

func TestRunHelp(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"--help"}, &stdout); err != nil {
		t.Fatalf("run --help: %v", err)
	}
	if !strings.Contains(stdout.String(), "--config") {
		t.Errorf("--help output does not list --config:\n%s", stdout.String())
	}
}

func TestRunConfigurationErrorsAreUsage(t *testing.T) {
	directory := t.TempDir()
	invalid := testutil.WriteFile(t, "invalid.yaml", []byte("log:\n  level: loud\n"))
	missingRoot := testutil.WriteFile(t, "missing-root.yaml", []byte(
		"catalog:\n  path: "+filepath.Join(directory, "catalog.db")+"\n"+
			"artifacts:\n  root: "+filepath.Join(directory, "absent")+"\n"))

	tests := []struct {
		name string
		args []string
	}{
		{"unknown_flag", []string{"--verbose"}},
		{"missing_file", []string{"--config", filepath.Join(directory, "nope.yaml")}},
		{"invalid_values", []string{"--config", invalid}},
		{"missing_artifact_root", []string{"--config", missingRoot}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := run(test.args, &bytes.Buffer{})
			if pkgmeta.KindOf(err) != pkgmeta.KindUsage {
				t.Errorf("run(%v) = %v, want usage error", test.args, err)
			}
		})
	}
}
