package main

import (
	nb "github.com/hhkbp2/nosqlbench"
	"github.com/hhkbp2/nosqlbench/binding"
)

func main() {
	binding.AddBindings()
	nb.Main()
}
