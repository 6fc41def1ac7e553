// Package tasks composes transforms into the named tasks the CLI exposes.
//
// Sequential is a strict barrier: each child starts only after the previous one
// returned nil. Parallel starts every child at once and, unlike a context-bound
// errgroup, does not cancel siblings when one fails; it waits for all of them and
// returns the first error.
package tasks
