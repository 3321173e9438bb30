package main

import "github.com/polenoz/ringchat/cmd"

func main() {
	cmd.Execute()
}
