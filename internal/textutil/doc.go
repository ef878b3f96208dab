// Package textutil provides filename sanitization for user-supplied names that
// become path segments.
package textutil
