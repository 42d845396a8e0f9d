// Command album stores photos and their custom metadata fields in a local
// album database.
package main

import (
	"os"

	"github.com/mesh-intelligence/albumstore/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
