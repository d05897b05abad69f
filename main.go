// main package for codesift command-line tool
// Package main is the entry point for the codesift CLI.
package main

import "codesift.dev/pkg/codesift/cmd"

func main() {
	cmd.Execute()
}
