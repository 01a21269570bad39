package main

import (
	"os"

	"github.com/hashicorp/tde/internal/cmd"
)

func main() {
	os.Exit(cmd.Run(os.Args[1:]))
}
