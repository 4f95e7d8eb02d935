package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// loadDotEnv loads CALC_* and OTEL_* settings from path when it exists.
// Variables already exported in the process environment win.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist) && path == defaultEnvFile:
		return nil
	default:
		return fmt.Errorf("load %s: %w", path, err)
	}
}
