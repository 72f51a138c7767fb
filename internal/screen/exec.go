package screen

import (
	"os/exec"
)

// Overridden in tests.
var (
	execCommand = exec.CommandContext
	lookPath    = exec.LookPath
)
