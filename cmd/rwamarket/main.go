// Command rwamarket runs the real-world asset marketplace ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/rwamarket/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
