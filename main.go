// ABOUTME: Entry point for the linkaudio engine
// ABOUTME: Hands off to the cobra command tree in internal/cli
package main

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/linkaudio/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
