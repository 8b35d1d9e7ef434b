package main

import "github.com/DimaJoyti/defi-sentinel/cmd/sentinel/commands"

func main() {
	commands.Execute()
}
