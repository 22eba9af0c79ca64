package main

import "github.com/nextlevelbuilder/polyglotgw/internal/clilocal"

func main() {
	clilocal.Execute()
}
