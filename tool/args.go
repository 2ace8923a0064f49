package tool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DecodeArguments converts the JSON object a model produced into named string
// arguments. Numbers and booleans are formatted, nested values re-encoded as
// JSON, and nulls dropped.
func DecodeArguments(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	args := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			args[k] = val
		case float64:
			args[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			args[k] = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("failed to encode argument %s: %w", k, err)
			}
			args[k] = string(b)
		}
	}

	return args, nil
}
