package main

import "github.com/Bitlatte/blogserve/cmd"

func main() {
	cmd.Execute()
}
