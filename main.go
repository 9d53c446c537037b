/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package main

import (
	"github.com/josephgoksu/guidedmodules/cmd"
	"github.com/josephgoksu/guidedmodules/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}
