// Package ffmpeg runs ffmpeg as an out-of-process worker and builds the
// argument lists for the two filter graphs the pipeline needs: an
// equal-weight amix of a recording's tracks and an audio-only concat of
// mixed recordings.
//
// Failures surface as *ExitError so callers can report the exit status and
// the tail of ffmpeg's diagnostic output.
package ffmpeg
