// Package preflight provides readiness checks for the external programs and
// filesystem paths a run depends on.
//
// These checks run in two contexts:
//   - "ribodb run" calls RunAll and CheckSystemDeps before the first item
//     and refuses to start when a required check fails.
//   - "ribodb check" prints every result as a table.
//
// Optional features (alignment, rDNA copy checks) add their programs only
// when enabled.
package preflight
