package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/terra-clan/maturity-engine/internal/assessment"
	"github.com/terra-clan/maturity-engine/internal/framework"
	"github.com/terra-clan/maturity-engine/internal/models"
)

// readInput reads a file, or stdin when path is "-"
func readInput(in io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// loadFramework returns the built-in framework for "default" or "", otherwise parses the file
func loadFramework(in io.Reader, path string) (*models.Framework, error) {
	if path == "" || path == "default" || path == framework.DefaultID {
		return framework.Default(), nil
	}

	data, err := readInput(in, path)
	if err != nil {
		return nil, err
	}
	fw, result := framework.Parse(data)
	if !result.Valid {
		return nil, fmt.Errorf("framework %s is invalid:\n  %s", path, strings.Join(result.Errors, "\n  "))
	}
	return fw, nil
}

// loadResponses reads a response set and checks it is complete for fw
func loadResponses(in io.Reader, path string, fw *models.Framework) ([]models.Response, error) {
	data, err := readInput(in, path)
	if err != nil {
		return nil, err
	}
	responses, err := assessment.ParseResponses(data)
	if err != nil {
		return nil, err
	}
	if err := assessment.CheckResponses(fw, responses); err != nil {
		return nil, err
	}
	if missing := assessment.Missing(fw, responses); len(missing) > 0 {
		return nil, fmt.Errorf("%d of %d questions are unanswered: %s",
			len(missing), fw.QuestionCount(), strings.Join(missing, ", "))
	}
	return responses, nil
}
