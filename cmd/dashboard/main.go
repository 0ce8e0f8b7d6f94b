package main

import (
	"log"

	"github.com/aleck31/crypto-dashboard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Fatalf("dashboard: %v", err)
	}
}
