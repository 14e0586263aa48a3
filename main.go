package main

import "github.com/mpapenbr/fpv-racedash/cmd"

func main() {
	cmd.Execute()
}
