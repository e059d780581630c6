// Package main is the single-binary entrypoint for matchd, the candidate/job
// matching service.
package main

import "github.com/matchd-io/matchd/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
