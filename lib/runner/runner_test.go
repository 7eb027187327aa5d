// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import "testing"

func TestParseKind(t *testing.T) {
	for _, text := range []string{"shell", "graphical", "echo"} {
		kind, err := ParseKind(text)
		if err != nil {
			t.Errorf("ParseKind(%q): %v", text, err)
		}
		if string(kind) != text {
			t.Errorf("ParseKind(%q) = %q", text, kind)
		}
	}
	if _, err := ParseKind("vnc"); err == nil {
		t.Error("ParseKind(vnc) succeeded")
	}
}

func TestVariantKinds(t *testing.T) {
	tests := []struct {
		runner      Runner
		want        Kind
		needDisplay bool
	}{
		{Shell{Command: "top"}, KindShell, false},
		{GraphicalForward{Display: 100, WindowManager: "openbox"}, KindGraphical, true},
		{Echo{}, KindEcho, false},
	}
	for _, test := range tests {
		if got := test.runner.Kind(); got != test.want {
			t.Errorf("%T.Kind() = %q, want %q", test.runner, got, test.want)
		}
		if got := test.runner.Kind().NeedsDisplay(); got != test.needDisplay {
			t.Errorf("%T NeedsDisplay = %v, want %v", test.runner, got, test.needDisplay)
		}
	}
}
