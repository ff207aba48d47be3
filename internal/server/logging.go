package server

import "log"

// SetupLogging configures the process-wide standard logger, mirroring
// the teacher's main.go preamble.
func SetupLogging() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
