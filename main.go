package main

import "github.com/Digital-Shane/mediameta/internal/cmd"

func main() {
	cmd.Execute()
}
