// Command speaklarity scores a speaker's pronunciation conversation by
// conversation, as a server or from the terminal.
package main

import (
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0
	ExitJobError = 1 // The pipeline ran and the job ended in the error stage
	ExitError    = 2 // Configuration or runtime error
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if isJobError(err) {
			os.Exit(ExitJobError)
		}
		os.Exit(ExitError)
	}
}
