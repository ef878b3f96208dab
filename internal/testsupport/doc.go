// Package testsupport holds fixtures shared by package tests: temp
// configurations, track files, real zip/tar.gz archives, and a FakeFFmpeg
// runner that records invocations and writes deterministic output.
package testsupport
