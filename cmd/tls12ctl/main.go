package main

import (
	"fmt"
	"os"

	"github.com/vlet/tls12/cmd/tls12ctl/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
