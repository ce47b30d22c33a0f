// Command sdupdater flashes ESP application images into the inactive slot
// of a simulated two-slot device and boots the other slot back when it
// already holds the requested menu image.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
