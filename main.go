// The main package for the leadscout executable.
package main

import (
	"github.com/tenkpostcards/leadscout/cmd"
)

func main() {
	cmd.Execute()
}
