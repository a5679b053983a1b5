package main

import "barakahAPI/internal/cli"

func main() {
	cli.Execute()
}
