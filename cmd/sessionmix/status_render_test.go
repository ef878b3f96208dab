package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("FFmpeg", statusOK, "ffmpeg version 7", false)
	if !strings.Contains(line, "FFmpeg:") || !strings.Contains(line, "[OK] ffmpeg version 7") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("FFmpeg", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red line, got %q", colored)
	}
}

func TestShouldColorizeNonTerminal(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderTablesPadShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}}, nil)
	if !strings.Contains(out, "1") || strings.Contains(out, "<nil>") {
		t.Fatalf("unexpected table %q", out)
	}
	kv := renderKeyValues([][2]string{{"Session", "weekly"}})
	if !strings.Contains(kv, "Session:") || !strings.Contains(kv, "weekly") {
		t.Fatalf("unexpected key/value block %q", kv)
	}
}
