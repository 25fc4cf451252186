package main

import (
	"os"

	"k8s.io/klog/v2"

	"github.com/gkobilansky/gamma-goat/internal/cli"
)

func main() {
	err := cli.Execute()
	klog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
