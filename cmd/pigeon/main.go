package main

import (
	"fmt"
	"os"

	"github.com/dengbo/ironpigeon/cmd/pigeon/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
