package main

import "github.com/vietddude/farewatch/internal/cli"

func main() {
	cli.Execute()
}
