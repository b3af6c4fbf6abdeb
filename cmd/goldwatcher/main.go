package main

import (
	"gold-price-watcher/internal/cli"
)

func main() {
	cli.Execute()
}
