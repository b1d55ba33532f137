// Command ownid-sample runs the passwordless register and login flows end to
// end against the reference flow host and backend.
package main

import (
	"fmt"
	"os"

	"github.com/ownid/ownid-go/cmd/ownid-sample/commands"
)

var version = "dev"

func main() {
	commands.SetVersion(version)
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
