package server

import "testing"

func TestNewServerDefaultsAddr(t *testing.T) {
	t.Parallel()

	s := NewServer("", nil, nil)
	if s.addr != ":8080" {
		t.Fatalf("addr=%q want %q", s.addr, ":8080")
	}
}

func TestNewServerKeepsAddr(t *testing.T) {
	t.Parallel()

	s := NewServer(":9090", nil, nil)
	if s.addr != ":9090" {
		t.Fatalf("addr=%q want %q", s.addr, ":9090")
	}
}
