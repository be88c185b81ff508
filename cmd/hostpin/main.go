package main

import "hostpin/internal/cli"

func main() {
	cli.Execute()
}
