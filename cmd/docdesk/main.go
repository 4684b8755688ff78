package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docdesk/internal/services"
)

// Exit statuses reported by the CLI.
const (
	exitFailure     = 1
	exitUsage       = 2
	exitNotFound    = 3
	exitConflict    = 4
	exitUpstream    = 5
	exitInterrupted = 130
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		code := exitCode(err)
		if code != exitInterrupted {
			fmt.Fprintf(os.Stderr, "docdesk: %v\n", err)
		}
		os.Exit(code)
	}
}

// exitCode maps a command error onto an exit status by its error code.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	switch services.Code(err) {
	case services.CodeBadRequest, services.CodeInvalidFilename:
		return exitUsage
	case services.CodeNotFound:
		return exitNotFound
	case services.CodeExists, services.CodeFileMissing, services.CodeNotClassified, services.CodeNoScores:
		return exitConflict
	case services.CodeUpstreamUnavailable, services.CodeUpstreamHTTP, services.CodeBadUpstreamResponse:
		return exitUpstream
	default:
		return exitFailure
	}
}
