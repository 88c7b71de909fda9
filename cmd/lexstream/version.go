package main

import (
	"fmt"
	"io"

	"github.com/kbukum/lexstream/version"
)

func versionCmd(stdout io.Writer) error {
	_, err := fmt.Fprintf(stdout, "lexstream %s\n", version.Get())
	return err
}
