package main

import "example.com/backstage/services/jamfops/cmd"

func main() {
	cmd.Execute()
}
