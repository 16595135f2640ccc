package main

import (
	"math/rand"
	"time"

	"github.com/tanno/parley/cmd"
)

func main() {
	rand.Seed(time.Now().UnixNano())

	cmd.Execute()
}
