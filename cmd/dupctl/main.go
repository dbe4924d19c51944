package main

import "imagededup/internal/cli"

func main() {
	cli.Execute()
}
