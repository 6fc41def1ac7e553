// Package devserver serves the build root during watch mode and pushes live reload
// messages to connected browsers over server-sent events.
package devserver
