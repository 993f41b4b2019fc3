package main

import "github.com/Tiliavir/shiftcheck/cmd"

func main() {
	cmd.Execute()
}
