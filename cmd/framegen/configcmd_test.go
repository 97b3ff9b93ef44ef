package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.ini")
	out, err := execRoot(t, "config", "validate", "--config", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Fatalf("config validate output: have %q, want it to mention validity", out)
	}
}

func TestConfigShowPrintsEveryKnownSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.ini")
	out, err := execRoot(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, section := range []string{"[FrameGen]", "[Capture]", "[GPU]", "[OpticalFlow]", "[Presentation]", "[Overlay]", "[Hotkeys]", "[Advanced]"} {
		if !strings.Contains(out, section) {
			t.Fatalf("config show output missing section %s:\n%s", section, out)
		}
	}
	if !strings.Contains(out, "Alt+F10") {
		t.Fatalf("config show output missing formatted default hotkey binding:\n%s", out)
	}
}
