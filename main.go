package main

import (
	"os"

	"github.com/roach88/csvsieve/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
