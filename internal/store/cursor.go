package store

import (
	"fmt"
	"strconv"
)

// parseIntState decodes a reserved-key cursor value. Cursors are stored as
// plain decimal strings, not JSON, so they read naturally from `smithers
// state get` without a JSON-aware client.
func parseIntState(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse cursor state %q: %w", value, err)
	}
	return n, nil
}

func formatIntState(n int) string {
	return strconv.Itoa(n)
}
