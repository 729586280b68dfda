package main

import "github.com/pumbayo1/quiltracker/internal/cli"

func main() {
	cli.Execute()
}
