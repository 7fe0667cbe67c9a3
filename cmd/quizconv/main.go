package main

import "github.com/dgallion1/quizgest/internal/cli"

func main() {
	cli.Execute()
}
