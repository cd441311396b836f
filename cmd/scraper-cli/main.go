package main

import "nrega-scraper/cmd/scraper-cli/cmd"

func main() {
	cmd.Execute()
}
