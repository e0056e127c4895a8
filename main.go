// The main package for the harvester executable.
package main

import (
	"github.com/jfelder/chronicle-harvester/cmd"
)

func main() {
	cmd.Execute()
}
