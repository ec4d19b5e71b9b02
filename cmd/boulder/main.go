package main

import "github.com/mcoot/boulder/internal/cli"

func main() {
	cli.Execute()
}
