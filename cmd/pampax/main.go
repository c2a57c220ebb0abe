package main

import "github.com/anthropics/pampax/internal/cmd"

func main() {
	cmd.Execute()
}
