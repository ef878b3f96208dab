// Package archive expands participant archives into per-recording
// directories.
//
// Formats are detected by file extension and, failing that, by header magic,
// so zip, tar (plain or compressed) and rar archives all work. Each archive
// lands in <raw>/<session>/<index>; the index keeps multiple archives of one
// session from colliding and preserves input order on disk.
package archive
