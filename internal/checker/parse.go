package checker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoOutput reports that the checker produced no stdout at all.
// This usually means a misconfigured executable; callers log it but do not
// surface it to the user, since benign causes are common.
var ErrNoOutput = errors.New("checker produced no output")

// MalformedOutputError reports stdout that is non-empty but not valid JSON:
// the tool emitted human-readable noise (for example a crash trace) instead
// of the machine format. Sample carries a truncated, whitespace-collapsed
// excerpt suitable for a user-facing warning.
type MalformedOutputError struct {
	Sample string
	err    error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("checker output is not valid JSON: %s", e.Sample)
}

func (e *MalformedOutputError) Unwrap() error { return e.err }

const sampleLimit = 200

// collapseSample truncates raw output and collapses whitespace runs so a
// multi-line crash trace fits in a single warning line.
func collapseSample(raw string) string {
	collapsed := strings.Join(strings.Fields(raw), " ")
	if len(collapsed) > sampleLimit {
		collapsed = collapsed[:sampleLimit] + "…"
	}
	return collapsed
}

// ParseCheckOutput decodes one check invocation's stdout.
// Returns ErrNoOutput for empty input and *MalformedOutputError for
// non-JSON input; callers branch on the error kind rather than catching
// generically.
func ParseCheckOutput(stdout []byte) (*CheckResult, error) {
	trimmed := strings.TrimSpace(string(stdout))
	if trimmed == "" {
		return nil, ErrNoOutput
	}

	var result CheckResult
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return nil, &MalformedOutputError{Sample: collapseSample(trimmed), err: err}
	}

	return &result, nil
}

// ParseValidateOutput decodes one validate invocation's stdout, with the
// same error taxonomy as ParseCheckOutput.
func ParseValidateOutput(stdout []byte) (*ValidateResult, error) {
	trimmed := strings.TrimSpace(string(stdout))
	if trimmed == "" {
		return nil, ErrNoOutput
	}

	var result ValidateResult
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return nil, &MalformedOutputError{Sample: collapseSample(trimmed), err: err}
	}

	return &result, nil
}
