package main

import (
	"fmt"
	"os"

	"github.com/wayfarer0/wayfarer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
