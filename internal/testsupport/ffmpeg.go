package testsupport

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
)

// FakeFFmpeg stands in for the ffmpeg binary. Each call writes the
// concatenated bytes of its inputs to the output (the final argument).
type FakeFFmpeg struct {
	// Fail, when set, decides whether a call fails before writing output.
	Fail func(args []string) error
	// Block, when set, holds every call until it is closed or the call's
	// context ends.
	Block <-chan struct{}
	// SkipOutput makes successful calls exit without writing anything.
	SkipOutput bool

	mu        sync.Mutex
	calls     [][]string
	active    int
	maxActive int
}

// Run matches ffmpeg.Runner.
func (f *FakeFFmpeg) Run(ctx context.Context, _ string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.Fail != nil {
		if err := f.Fail(args); err != nil {
			return err
		}
	}
	if f.SkipOutput || len(args) == 0 {
		return nil
	}
	var data []byte
	for _, in := range Inputs(args) {
		chunk, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		data = append(data, chunk...)
	}
	return os.WriteFile(args[len(args)-1], data, 0o644)
}

// Calls returns a copy of the recorded argument lists.
func (f *FakeFFmpeg) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Active reports how many calls are currently running.
func (f *FakeFFmpeg) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// MaxActive reports the highest number of simultaneous calls observed.
func (f *FakeFFmpeg) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

// Inputs extracts the values following each -i flag.
func Inputs(args []string) []string {
	var inputs []string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-i" {
			inputs = append(inputs, args[i+1])
			i++
		}
	}
	return inputs
}

// Eventually polls cond until it holds or the deadline passes.
func Eventually(t testing.TB, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
