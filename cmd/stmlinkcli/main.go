package main

import (
	"github.com/robotalks/stmlink/pkg/cli/sh"
	"github.com/robotalks/stmlink/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
