// chatball is a terminal client for a streaming chat backend.
package main

import (
	"fmt"
	"os"

	"github.com/linanwx/chatball/cmd"
	"github.com/linanwx/chatball/config"
	"github.com/linanwx/chatball/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	dir, _ := config.ConfigDir()
	if err := logger.Init(cfg.BuildLoggerConfig(), dir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	cmd.Execute()
}
