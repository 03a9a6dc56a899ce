package main

import (
	"github.com/robotalks/picobot/pkg/cli"
)

func main() {
	cli.Main()
}
