package tools

import "os"

func processPID() int {
	return os.Getpid()
}
