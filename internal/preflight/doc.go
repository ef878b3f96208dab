// Package preflight provides readiness checks for the directories and
// external binaries a session run depends on.
//
// These checks run in two contexts:
//   - "sessionmix run" calls RunAll and CheckArchives before expanding
//     anything, so a missing output directory or unreadable archive fails
//     fast instead of after minutes of mixing.
//   - "sessionmix doctor" displays every check, including system binaries.
package preflight
