package main

import "github.com/notargets/gorefine/cmd"

func main() {
	cmd.Execute()
}
