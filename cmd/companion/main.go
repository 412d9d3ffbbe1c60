package main

import (
	"github.com/eleven-am/voice-companion/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
