package main

import "github.com/frahmantamala/fitness-content/cmd"

func main() {
	cmd.Execute()
}
