package main

import (
	"os"
	"path/filepath"

	"github.com/josephgoksu/taskfleet/cmd"
	"github.com/josephgoksu/taskfleet/internal/logger"
)

func main() {
	crash := logger.NewCrash(filepath.Join(".taskfleet", "crash_logs"), cmd.GetVersion())
	cmd.SetCrash(crash)
	defer crash.HandlePanic()

	os.Exit(cmd.Execute())
}
