// The main package for the indexwatch executable.
package main

import (
	"github.com/voralis/indexwatch/cmd"
)

func main() {
	cmd.Execute()
}
