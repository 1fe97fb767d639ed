package main

import "github.com/AvaProtocol/ap-smartaccount/cmd"

func main() {
	cmd.Execute()
}
