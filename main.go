package main

import "github.com/example/webvoca/internal/cli"

func main() {
	cli.Execute()
}
