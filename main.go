/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package main

import (
	"github.com/josephgoksu/Wayline/cmd"
	"github.com/josephgoksu/Wayline/internal/logger"
)

// version is injected with -ldflags "-X main.version=...".
var version string

func main() {
	defer logger.HandlePanic()
	cmd.Execute(version)
}
