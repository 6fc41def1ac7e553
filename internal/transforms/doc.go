// Package transforms assembles the processing chain of every asset category in dev
// and build mode from configuration.
//
// A Factory is created once per process. Transforms it returns are stateless and can
// be run any number of times, from tasks and from the watcher.
package transforms
