package main

import "github.com/example/call-scheduler/cmd"

func main() {
	cmd.Execute()
}
