package main

import (
	"log"

	"github.com/thiagokokada/branchlens/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("branchlens: %v", err)
	}
}
