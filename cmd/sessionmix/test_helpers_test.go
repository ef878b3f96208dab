package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sessionmix/internal/media/ffprobe"
	"sessionmix/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	rawDir     string
	outputDir  string
	logDir     string
	configPath string
	ffmpeg     *testsupport.FakeFFmpeg
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Chdir(base)

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\necho \""+name+" version test\"\n"), 0o755); err != nil {
			t.Fatalf("write stub: %v", err)
		}
	}

	env := &cliTestEnv{
		baseDir:    base,
		rawDir:     filepath.Join(base, "raw"),
		outputDir:  filepath.Join(base, "out"),
		logDir:     filepath.Join(base, "logs"),
		configPath: filepath.Join(homeDir, ".config", "sessionmix", "config.toml"),
		ffmpeg:     &testsupport.FakeFFmpeg{},
	}
	if err := os.MkdirAll(env.outputDir, 0o755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[paths]
raw_dir = %q
output_dir = %q
log_dir = %q

[session]
max_concurrent_mixes = 2

[ffmpeg]
binary = %q
ffprobe_binary = %q
verify_output = true
`, env.rawDir, env.outputDir, env.logDir, filepath.Join(binDir, "ffmpeg"), filepath.Join(binDir, "ffprobe"))
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) hooks() func(*commandContext) {
	return func(c *commandContext) {
		c.runner = e.ffmpeg.Run
		c.inspector = func(context.Context, string, string) (ffprobe.Result, error) {
			return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "audio"}}}, nil
		}
	}
}

func runCLI(t *testing.T, args []string, opts ...func(*commandContext)) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(opts...)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
