// Package version holds the build-time version metadata of the coedit
// binary, stamped via the -X linker flag.
package version

var (
	// Version is the semantic version of this build. Development builds
	// keep the zero version.
	Version = "0.0.0"

	// BuildDate is the UTC date the binary was built, empty when not
	// stamped.
	BuildDate string
)
