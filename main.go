package main

import "github.com/dt-pm-tools/jira-loader/cmd"

func main() {
	cmd.Execute()
}
