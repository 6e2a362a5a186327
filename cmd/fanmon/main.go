package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/orbstack/fanmon/cmd/fanmon/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		red := color.New(color.FgRed).FprintlnFunc()
		red(os.Stderr, "fanmon:", err)
		os.Exit(1)
	}
}
