package main

import "github.com/nextlevelbuilder/polyglotgw/internal/cliserver"

func main() {
	cliserver.Execute()
}
