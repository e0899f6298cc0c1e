package main

import (
	"os"

	"github.com/petsc/confprobe/cmd/confprobe/internal"
)

func main() {
	os.Exit(internal.Execute())
}
