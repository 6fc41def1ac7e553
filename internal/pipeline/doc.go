// Package pipeline runs category transforms: it expands source patterns, streams the
// matched files through an ordered chain of steps, and promotes the outputs from a
// staging directory into the category output directory.
//
// A chain is a plain slice of Step values. Emit marks a checkpoint whose assets are
// written in addition to the final set, which is how styles and scripts produce a
// full artifact and its .min sibling from one chain.
package pipeline
