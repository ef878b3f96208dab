package ffmpeg

import (
	"fmt"
	"strings"
)

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
}

// MixArgs combines every input with equal weight. normalize=0 keeps amix from
// rescaling the sum; duration=longest makes the mix as long as the longest
// track. A single input still passes through amix.
func MixArgs(inputs []string, output string) []string {
	args := baseArgs()
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	filter := fmt.Sprintf("amix=inputs=%d:duration=longest:dropout_transition=0:normalize=0", len(inputs))
	return append(args, "-filter_complex", filter, "-vn", output)
}

// ConcatArgs joins the audio of every input, in order, into a single stream
// with no video.
func ConcatArgs(inputs []string, output string) []string {
	args := baseArgs()
	var graph strings.Builder
	for i, in := range inputs {
		args = append(args, "-i", in)
		fmt.Fprintf(&graph, "[%d:a]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=0:a=1[out]", len(inputs))
	return append(args, "-filter_complex", graph.String(), "-map", "[out]", "-vn", output)
}
