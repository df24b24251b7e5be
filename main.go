package main

import "github.com/insightdelivered/tax-declaration-converter/internal/commands"

func main() {
	commands.Execute()
}
