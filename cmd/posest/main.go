package main

import "github.com/MeKo-Tech/posest/cmd/posest/cmd"

func main() {
	cmd.Execute()
}
