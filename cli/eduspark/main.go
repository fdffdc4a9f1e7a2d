package main

import (
	"os"

	edusparkcmder "github.com/eduspark/portal/cmd/eduspark"
)

func main() {
	cmd := edusparkcmder.NewEdusparkCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
