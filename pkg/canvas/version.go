// Package canvas holds build metadata for the canvas module.
package canvas

// Version is the release version reported by the CLI.
const Version = "0.1.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/canvas"
