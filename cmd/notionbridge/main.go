package main

import (
	"github.com/tasklink/notionbridge/internal/cli"
)

func main() {
	cli.Execute()
}
