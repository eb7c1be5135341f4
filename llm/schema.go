package llm

import (
	"encoding/json"
	"fmt"

	"github.com/deletexiumu/screen-analyzer/utils"
)

// SchemaRepairError marks a response that couldn't be coerced into the
// expected JSON shape, so the Orchestrator knows to do its one-round
// re-ask rather than treat the call as a hard failure.
type SchemaRepairError struct {
	RawText string
	Cause   error
}

func (e *SchemaRepairError) Error() string {
	return fmt.Sprintf("schema repair failed: %v", e.Cause)
}

func (e *SchemaRepairError) Unwrap() error { return e.Cause }

// ParseStructured extracts JSON from a provider's prose response (fenced
// code block, then brace-matching, exactly as utils.ParseJSONFromLLMResponse
// already does) and unmarshals it into dst. Every provider calls this
// rather than rolling its own extraction, so the repair behavior stays in
// one place even though the call site is inside the provider.
func ParseStructured(rawText string, dst interface{}) error {
	parsed, err := utils.ParseJSONFromLLMResponse(rawText)
	if err != nil {
		return &SchemaRepairError{RawText: rawText, Cause: err}
	}

	// Round-trip through json so we can unmarshal into a concrete struct
	// rather than match the generic map/slice layout ParseJSONFromLLMResponse
	// returns.
	data, err := json.Marshal(parsed)
	if err != nil {
		return &SchemaRepairError{RawText: rawText, Cause: err}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &SchemaRepairError{RawText: rawText, Cause: err}
	}
	return nil
}
