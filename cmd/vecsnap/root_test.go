package main

import (
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0", nil)

	if cmd.Use != "vecsnap" {
		t.Errorf("expected Use='vecsnap', got %q", cmd.Use)
	}
	if cmd.Version != "1.0.0" {
		t.Errorf("expected Version='1.0.0', got %q", cmd.Version)
	}
}

func TestRootCmdHasFlags(t *testing.T) {
	cmd := NewRootCmd("dev", nil)

	for _, name := range []string{"config", "json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to exist", name)
		}
	}
}

func TestRootCmdSubcommands(t *testing.T) {
	cmd := NewRootCmd("dev", nil)

	want := []string{"serve", "capture", "search", "images", "publish", "ping", "version"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub == nil || sub.Name() != name {
			t.Errorf("subcommand %q not found", name)
		}
	}

	images, _, _ := cmd.Find([]string{"images"})
	for _, name := range []string{"list", "get", "delete", "clear"} {
		sub, _, err := images.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("images subcommand %q not found", name)
		}
	}
}

func TestCaptureFlagsOnServe(t *testing.T) {
	cmd := NewRootCmd("dev", nil)
	serve, _, _ := cmd.Find([]string{"serve"})

	for _, name := range []string{"port", "capture-loop", "file", "stdin", "watch"} {
		if serve.Flags().Lookup(name) == nil {
			t.Errorf("serve lacks flag %q", name)
		}
	}
}
