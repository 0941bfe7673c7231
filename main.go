// The main package for the rankcheck executable.
package main

import (
	"github.com/JakeFAU/admissions-rank/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
