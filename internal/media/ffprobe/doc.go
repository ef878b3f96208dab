// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes ffprobe and returns the parsed Result; helper methods
// count streams by type and parse container duration. The export stage uses
// it to confirm a concatenated recording carries exactly one audio stream.
package ffprobe
