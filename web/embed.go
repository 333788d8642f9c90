// Package web carries the compiled single-page frontend. The packaging
// toolchain replaces dist/ with the real build output before compiling a
// bundled binary; the checked-in tree is a minimal placeholder.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var distFS embed.FS

// DistDir is the directory, relative to this package, that holds the build.
const DistDir = "dist"

// Dist returns the embedded frontend build rooted at its top directory.
func Dist() (fs.FS, error) {
	return fs.Sub(distFS, DistDir)
}
