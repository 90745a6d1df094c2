package main

import "praxis-billing/cmd"

func main() {
	cmd.Execute()
}
