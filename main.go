package main

import "taskpact.com/taskpact/cmd"

func main() {
	cmd.Execute()
}
