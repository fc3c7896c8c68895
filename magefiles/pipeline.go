//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// runCLI invokes the built binary with the given arguments.
func runCLI(args ...string) error {
	cmd := exec.Command(filepath.Join(binDir, binName), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Segment flattens parsed filings in filings/ into shard files under batches/.
func Segment() error {
	mg.Deps(Build)
	return runCLI("segment", "--input-dir", "filings", "--batch-dir", "batches")
}

// Annotate runs the cached annotation pipeline over batches/, writing
// document records to records/.
func Annotate() error {
	mg.Deps(Build)
	return runCLI("annotate", "--batch-dir", "batches", "--records-dir", "records")
}

// Index ingests document records from records/ into the SQLite entity index.
func Index() error {
	mg.Deps(Build)
	return runCLI("index", "store", "--records-dir", "records", "--index-dir", "index")
}

// Test runs the package tests.
func Test() error {
	return runGo("test", "./...")
}

// Lint runs go vet over the module.
func Lint() error {
	return runGo("vet", "./...")
}

func runGo(args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Pipeline runs the full sequence: segment, annotate, index.
func Pipeline() error {
	for _, step := range []func() error{Segment, Annotate, Index} {
		if err := step(); err != nil {
			return err
		}
	}
	fmt.Println("Pipeline complete.")
	return nil
}
