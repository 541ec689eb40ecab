package main

import (
	"os"

	"github.com/G-Research/armada-compute/cmd/computenode/cmd"
)

func main() {
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
