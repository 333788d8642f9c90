//go:build bundled

package paths

// Bundled reports whether this binary was produced by the packaging
// toolchain (built with -tags bundled).
const Bundled = true
