/*
Copyright © 2025 The Triage Authors
*/
package main

import (
	"github.com/psychon7/Triage-AI/cmd"
	"github.com/psychon7/Triage-AI/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}
