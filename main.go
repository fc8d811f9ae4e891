package main

import "github.com/denMaier/solids4foam-sub001/cmd"

func main() {
	cmd.Execute()
}
