// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact yes", "yes\n", true},
		{"yes with whitespace", "  yes  \n", true},
		{"uppercase", "YES\n", false},
		{"y alone", "y\n", false},
		{"empty line", "\n", false},
		{"eof", "", false},
		{"yes without newline", "yes", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := confirm(strings.NewReader(tt.input), &out, "Dangerous.")
			if got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "Type 'yes' to continue") {
				t.Errorf("prompt missing from output: %q", out.String())
			}
		})
	}
}
