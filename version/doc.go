// Package version reports the build of a lexstream binary for the version
// command and the /version and /info endpoints.
package version
