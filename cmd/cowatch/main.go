package main

import "github.com/sharetube/cowatch/cmd/cowatch/cmd"

func main() {
	cmd.Execute()
}
