package main

import (
	"github.com/caesium-cloud/hera/cmd"
	"github.com/caesium-cloud/hera/pkg/env"
	"github.com/caesium-cloud/hera/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("hera failure", "error", err)
	}
}
