// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Command pcq runs a demonstration of producers and consumers sharing a
// bounded channel. Producers make random items after random delays,
// consumers take them after random delays, and the run ends once every
// produced item has been consumed.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pcq failed: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
