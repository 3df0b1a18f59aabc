package main

import "github.com/brogergvhs/bibe/cmd"

func main() {
	cmd.Execute()
}
