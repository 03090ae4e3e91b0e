// Package main implements the stac-table command, which generates STAC
// Items and Collections describing Parquet and GeoParquet datasets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	stacerrors "github.com/stactable/stac-table/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error category to the process exit status.
func exitCode(err error) int {
	switch stacerrors.GetCategory(err) {
	case stacerrors.ErrCategoryInvalidArgument:
		return 2
	case stacerrors.ErrCategoryNotFound:
		return 3
	case stacerrors.ErrCategoryConnection:
		return 4
	case stacerrors.ErrCategoryValidation:
		return 5
	default:
		return 1
	}
}
