package main

import (
	"pricewatch/internal/cli"
)

func main() {
	cli.Execute()
}
