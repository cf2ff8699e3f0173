package main

import (
	"os"

	"github.com/ncasillas/txpilot/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
