package main

import (
	"os"

	"github.com/Prajwal-kp-18/llvm-fihardening/cmd"
)

func main() {
	h := cmd.NewHardenerFromArgs()

	if !h.Harden() {
		os.Exit(1)
	}
}
