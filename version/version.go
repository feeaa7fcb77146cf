// Package version holds the build version, set at link time with
// -ldflags "-X github.com/JiscSD/ammolib/version.VERSION=...".
package version

// VERSION is the version of the build.
var VERSION = "dev"
