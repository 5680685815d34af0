package registry

import (
	"os"
	"os/exec"
)

// Indirections for the command liveness check, swappable in tests.
var (
	lookPath = exec.LookPath
	lookStat = os.Stat
)
