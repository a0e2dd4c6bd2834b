package main

import "github.com/geekxflood/gosnmpd/cmd"

func main() {
	cmd.Execute()
}
