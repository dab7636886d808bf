// Command bksctl is the operator CLI: schema migrations, chart seeding and
// ledger integrity checks.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
