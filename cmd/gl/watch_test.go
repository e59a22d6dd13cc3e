package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hollandm/glimpse/internal/client"
)

func TestWatchCmd_Help(t *testing.T) {
	out, err := runCLI(t, "watch", "--help")
	if err != nil {
		t.Fatalf("watch --help failed: %v", err)
	}
	if !strings.Contains(out, "--session") {
		t.Errorf("expected help to mention '--session' flag, got: %s", out)
	}
}

func TestWatchCmd_RequiresSession(t *testing.T) {
	if _, err := runCLI(t, "watch"); err == nil {
		t.Error("expected error when --session is missing")
	}
}

func TestPrintWatchMessage(t *testing.T) {
	buf := new(bytes.Buffer)
	printWatchMessage(buf, client.Message{Role: "assistant", Content: "a terminal window", MediaType: "screenshot"})

	out := buf.String()
	if !strings.Contains(out, "assistant") {
		t.Errorf("expected role in output, got: %s", out)
	}
	if !strings.Contains(out, "[screenshot]") {
		t.Errorf("expected media tag in output, got: %s", out)
	}
	if !strings.Contains(out, "a terminal window") {
		t.Errorf("expected content in output, got: %s", out)
	}
}
