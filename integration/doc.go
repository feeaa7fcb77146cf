// Package integration exercises the packages together: builder, transports,
// distributor client, command relay and the SQLite content providers.
//
// The tests run in-process with `go test ./integration/...`. Supported
// flags:
//
//   -cli
//
//    Also run the command line tests against the ammolib binary found in
//    $PATH, e.g. after `go install .`.
//
package integration
