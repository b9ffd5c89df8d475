package main

import (
	"os"

	"github.com/dl-alexandre/sheetport/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
