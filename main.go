package main

import "github.com/strata-site/strata/cmd"

func main() {
	cmd.Execute()
}
