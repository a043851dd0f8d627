package main

import "github.com/mpapenbr/iracelog-segment-analyzer-go/cmd"

func main() {
	cmd.Execute()
}
