// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1}, // substitution
		{"abc", "ab", 1},  // deletion
		{"ab", "abc", 1},  // insertion
		{"abc", "bac", 2}, // transposition (counted as 2 edits)
		{"kitten", "sitting", 3},
		{"analyse", "analyze", 1},
		{"stauts", "status", 2},
	}

	for _, test := range tests {
		t.Run(test.a+"->"+test.b, func(t *testing.T) {
			got := levenshtein(test.a, test.b)
			if got != test.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
			}
		})
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("start", pflag.ContinueOnError)
	flagSet.String("kind", "graphical", "")
	flagSet.String("window-manager", "", "")
	flagSet.BoolP("wait", "w", false, "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--knid", "shell"}, "--kind"},
		{[]string{"--window-manger=openbox"}, "--window-manager"},
		{[]string{"--kind", "shell", "--wiat"}, "--wait"},
		{[]string{"--completely-unrelated"}, ""},
		{[]string{"-w"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
