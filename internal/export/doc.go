// Package export produces the final session file from the ordered mixed
// recordings: a plain move when there is one recording and an ffmpeg concat
// otherwise.
package export
