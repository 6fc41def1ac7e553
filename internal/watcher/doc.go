// Package watcher re-runs a category's dev transform when files matching its watch
// patterns change.
//
// Each category gets a Coalescer. Bursts of changes collapse into one run after a
// quiet window, a steady stream still runs once the max delay passed, and a change
// that arrives while a run is in flight queues exactly one follow-up run.
package watcher
