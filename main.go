// ./main.go
package main

import (
	"github.com/xkilldash9x/domscript/cmd"
)

// main is the entry point for the domscript CLI.
func main() {
	cmd.Execute()
}
