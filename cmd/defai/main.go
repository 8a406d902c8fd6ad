package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/ggonzalez94/defai/internal/app"
)

func main() {
	// A missing .env is not an error; the environment may already be set.
	_ = godotenv.Load()
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
