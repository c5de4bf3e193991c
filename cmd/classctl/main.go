package main

import "classlink/cmd/classctl/cmd"

func main() {
	cmd.Execute()
}
