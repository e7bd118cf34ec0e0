package main

import "github.com/vietddude/framehash/internal/cli"

func main() {
	cli.Execute()
}
