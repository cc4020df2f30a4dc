package main

import "github.com/endorses/paycat/cmd"

func main() {
	cmd.Execute()
}
