// Package meta holds build metadata shared by the CLI commands.
package meta

// Version is the pgward release version. Overridable at build time with
// -ldflags "-X github.com/pgward/pgward/internal/meta.Version=...".
var Version = "1.0.0"
