package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"analytics-ai/internal/table"
)

// Result is the table the child produced.
type Result struct {
	Name         string
	AutoSelected bool
	Records      []table.Record
}

type envelope struct {
	Found        bool            `json:"found"`
	Name         string          `json:"name"`
	AutoSelected bool            `json:"auto_selected"`
	Records      json.RawMessage `json:"records"`
}

const noResultMessage = "No valid result found in code output"

func readResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, newExecError(CauseNoResult, noResultMessage, nil)
	}
	if err != nil {
		return nil, newExecError(CauseNoResult, noResultMessage, err)
	}
	return parseEnvelope(data)
}

func parseEnvelope(data []byte) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, newExecError(CauseParseFailure, fmt.Sprintf("Failed to parse JSON result: %v", err), err)
	}
	if !env.Found {
		return nil, newExecError(CauseNoResult, noResultMessage, nil)
	}

	records, err := table.DecodeRecords(env.Records)
	if err != nil {
		return nil, newExecError(CauseParseFailure, fmt.Sprintf("Failed to parse JSON result: %v", err), err)
	}

	return &Result{
		Name:         env.Name,
		AutoSelected: env.AutoSelected,
		Records:      records,
	}, nil
}
