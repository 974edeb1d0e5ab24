package main

import "github.com/AireshBhat/nodedash/cmd/nodedash/cmd"

func main() {
	cmd.Execute()
}
