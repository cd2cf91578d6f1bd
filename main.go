package main

import "github.com/mbolis/dynamic-forms/cli"

func main() {
	cli.Execute()
}
