// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package port

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/infractura/ssh-desktop/lib/display"
)

func TestDerive(t *testing.T) {
	resolver := NewResolver(14500, "127.0.0.1", time.Second)
	tests := []struct {
		display display.Number
		want    Port
	}{
		{100, 14600},
		{599, 15099},
		{0, 14500},
	}
	for _, test := range tests {
		if got := resolver.Derive(test.display); got != test.want {
			t.Errorf("Derive(%d) = %d, want %d", test.display, got, test.want)
		}
	}
}

func TestCheckAvailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	occupied := Port(listener.Addr().(*net.TCPAddr).Port)

	resolver := NewResolver(0, "127.0.0.1", time.Second)
	if resolver.CheckAvailable(context.Background(), occupied) {
		t.Fatalf("port %d reported available while held", occupied)
	}

	listener.Close()
	if !resolver.CheckAvailable(context.Background(), occupied) {
		t.Fatalf("port %d reported unavailable after release", occupied)
	}
}
