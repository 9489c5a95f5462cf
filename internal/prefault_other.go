//go:build !unix

package internal

import (
	"io"
	"os"
)

// prefaultFile reads path once so its pages sit in the OS cache.
func prefaultFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(io.Discard, f)
	return err
}
