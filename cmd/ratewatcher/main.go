package main

import (
	"ratewatcher/internal/cli"
)

func main() {
	cli.Execute()
}
