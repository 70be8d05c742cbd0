package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestIntegration_SolSession drives the binary's root command end to end.
func TestIntegration_SolSession(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		"create planetSystem Sol 300 101325 0 0.1",
		"addPlanet Earth Sol 288 101325 60 0.2",
		"addSatellite Moon Earth 220 0 0 0.05",
		"getPathTo Moon",
		"exit",
	}, "\n"))
	var out bytes.Buffer

	cmd := newRootCommand(in, &out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	want := "System created.\nPlanet added.\nSatellite added.\nPath to Moon:\nSol Earth Moon\nExiting...\n"
	if got := out.String(); got != want {
		t.Fatalf("transcript = %q, want %q", got, want)
	}
}

func TestIntegration_ScenarioSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sol.yaml")
	doc := `star:
  name: Sol
  temperature: 5778
  radiation: 0.1
  bodies:
    - name: Mars
      kind: planet
      temperature: 210
      pressure: 600
      radiation: 0.3
      bodies:
        - {name: Phobos, kind: moon, temperature: 233, radiation: 0.1}
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCommand(strings.NewReader("getPathTo Phobos\nfindRadiationAnomalies 0.2\n"), &out)
	cmd.SetArgs([]string{"--scenario", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute error: %v", err)
	}

	want := "Path to Phobos:\nSol Mars Phobos\nRadiation anomalies:\nMars\n"
	if got := out.String(); got != want {
		t.Fatalf("transcript = %q, want %q", got, want)
	}
}

func TestIntegration_BadScenarioFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("star: {name: Sol, humidity: 40}\n"), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCommand(strings.NewReader("exit\n"), &out)
	cmd.SetArgs([]string{"--scenario", path})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for humid star scenario")
	}
	if out.Len() != 0 {
		t.Fatalf("session should not start, got %q", out.String())
	}
}

func TestRootCommandRejectsPositionalArgs(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand(strings.NewReader(""), &out)
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for positional args")
	}
}
