// lumenyxctl supervises a Lumenyx node: lifecycle, health, and mining mode.
package main

import (
	"os"

	"github.com/lumenyx/lumenyxctl/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
