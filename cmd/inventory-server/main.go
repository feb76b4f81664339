// Command inventory-server runs the inventory HTTP API and its maintenance
// tasks.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
