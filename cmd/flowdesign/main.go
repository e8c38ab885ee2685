package main

import (
	"github.com/hb-chen/flowdesign/cmd"
)

func main() {
	cmd.Execute()
}
