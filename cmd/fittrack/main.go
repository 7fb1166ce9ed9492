package main

import "example.com/fittrack/internal/cli"

func main() {
	cli.Execute()
}
