// Package git reads the state of the project repository so build history can
// record which commit a task run built.
package git
