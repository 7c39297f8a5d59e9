package main

import (
	"fmt"
	"os"

	"wc-salesforce-sync/internal/cli"
)

func main() {
	opts := &cli.RootOptions{}
	err := cli.NewRootCommand(opts).Execute()
	opts.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
