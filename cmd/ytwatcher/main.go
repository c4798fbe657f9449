package main

import (
	"channel-metrics-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
