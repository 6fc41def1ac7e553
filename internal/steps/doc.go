// Package steps provides the concrete pipeline steps of every asset category.
//
// Each step delegates the transformation itself to a library (esbuild, Dart Sass,
// tdewolff/minify, nativewebp, goldmark, x/net/html) and only decides which assets
// it applies to and how the result is named.
package steps
