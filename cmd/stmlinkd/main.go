package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/stmlink/pkg/env"
	"github.com/robotalks/stmlink/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	env := env.NewConfig().MustNewEnv()
	defer env.Close()
	loop := framework.NewLoop().Add(env)
	loop.StopOnError = true
	loop.RunOrFail()
}
