package main

import "tanalyzer_go/internal/cli"

func main() {
	cli.Execute()
}
