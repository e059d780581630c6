package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// matchRequest is the request document shared by match and explain, the
// same {candidate, jobs, options} shape POST /match accepts.
type matchRequest struct {
	Candidate map[string]any   `json:"candidate"`
	Jobs      []map[string]any `json:"jobs"`
	Options   json.RawMessage  `json:"options"`
}

// loadRequest reads a request document from path, or stdin when path is "-".
func loadRequest(path string) (matchRequest, error) {
	var req matchRequest

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}

	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

// printJSON pretty-prints v to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
