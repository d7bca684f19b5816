package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

var version = "dev"

func main() {
	root := newRootCmd(afero.NewOsFs())
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
