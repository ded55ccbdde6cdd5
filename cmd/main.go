package main

import (
	"log"

	_ "github.com/mdokit/optdriver/internal/solver/gradient"
	_ "github.com/mdokit/optdriver/internal/solver/mayfly"
	_ "github.com/mdokit/optdriver/internal/solver/simplex"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}
