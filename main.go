// storeql – AI-powered natural language analytics over store sales data.
//
// Entry point: initializes the Cobra root command; `serve` runs the
// HTTP API, `chat` runs the terminal client.
package main

import (
	"os"

	"github.com/storeql/storeql/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
