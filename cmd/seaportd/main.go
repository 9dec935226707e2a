package main

import "github.com/marinerlabs/goseaport/internal/cli"

func main() {
	cli.Execute()
}
