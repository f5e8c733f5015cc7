// Package main is the entry point for the rads CLI.
package main

import "rads.dev/pkg/rads/cmd"

func main() {
	cmd.Execute()
}
