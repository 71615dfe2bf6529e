// File: cmd/transcribe/main.go
package main

import (
	"os"

	"transcribe-jobs/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(cli.Execute(version, commit))
}
