package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunBuild(t *testing.T) {
	src := t.TempDir()
	dist := filepath.Join(t.TempDir(), "dist")

	if err := os.WriteFile(filepath.Join(src, "calculator.html"), []byte("<title>Calc</title>"), 0644); err != nil {
		t.Fatal(err)
	}
	configPath := writeConfig(t, "build:\n  author: tester\nlog:\n  level: error\n")

	output, err := executeCmd(t, "build", "-c", configPath, "--src", src, "--dist", dist)
	if err != nil {
		t.Fatalf("build command error = %v", err)
	}
	if !strings.Contains(output, "Generated 1 applet(s)") {
		t.Errorf("output = %q, want summary", output)
	}

	data, err := os.ReadFile(filepath.Join(dist, "calculator.json"))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	var m struct {
		Title     string `json:"title"`
		Icon      string `json:"icon"`
		CreatedBy string `json:"createdBy"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("invalid manifest: %v", err)
	}
	if m.Title != "Calc" || m.Icon != "🔢" || m.CreatedBy != "tester" {
		t.Errorf("manifest = %+v", m)
	}
}

func TestRunBuild_MissingSource(t *testing.T) {
	configPath := writeConfig(t, "log:\n  level: error\n")
	_, err := executeCmd(t, "build", "-c", configPath,
		"--src", filepath.Join(t.TempDir(), "missing"),
		"--dist", t.TempDir(),
	)
	if err == nil || !strings.Contains(err.Error(), "build failed") {
		t.Errorf("build command error = %v, want build failure", err)
	}
}
