package main

import "raceday-api/cmd"

func main() {
	cmd.Execute()
}
