// Package preflight provides readiness checks for the converter binary, the
// directories a run writes to, and the sample source.
//
// The convert command runs RunAll before opening the dataset and refuses to
// start when a check fails; `scrapscii check` renders the same results as a
// table.
package preflight
