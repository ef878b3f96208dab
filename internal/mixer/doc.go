// Package mixer discovers a recording's tracks and mixes them into one file
// with ffmpeg's amix filter.
//
// Launch starts a mix in the background and returns a Handle immediately;
// Wait blocks until that ffmpeg process has exited. A weighted semaphore
// bounds how many ffmpeg processes run at once, so launching many recordings
// never blocks the caller and never oversubscribes the host.
package mixer
