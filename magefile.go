//go:build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "cardforge"

// Default target to run when none is specified
var Default = Build

// Build builds the cardforge binary
func Build() error {
	return sh.RunV("go", "build", "-o", binary, "./cmd/cardforge")
}

// Install installs cardforge into GOPATH/bin
func Install() error {
	return sh.RunV("go", "install", "./cmd/cardforge")
}

// Test runs all tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Integration runs the tests including those that call the OpenAI API
func Integration() error {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return mg.Fatal(1, "OPENAI_API_KEY must be set for integration tests")
	}
	return sh.RunV("go", "test", "-count=1", "./...")
}

// Vet runs go vet
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs vet and tests
func Check() {
	mg.SerialDeps(Vet, Test)
}

// Clean removes the built binary
func Clean() error {
	return sh.Rm(binary)
}
