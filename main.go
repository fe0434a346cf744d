package main

import "hytun/internal/cli"

func main() {
	cli.Execute()
}
