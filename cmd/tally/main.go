package main

import (
	"os"

	"github.com/tallyware/tally/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
