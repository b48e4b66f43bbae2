package main

import "github.com/estateops/taskdesk/cmd"

func main() {
	cmd.Execute()
}
