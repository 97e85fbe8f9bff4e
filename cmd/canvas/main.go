// Command canvas composes and stores multi-tenant sites.
package main

import (
	"os"

	"github.com/mesh-intelligence/canvas/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
