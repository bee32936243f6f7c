package enums

import (
	"fmt"
	"strings"
)

// ChangeOperation is the kind of mutation carried by a registration change event.
type ChangeOperation string

const (
	ChangeOperationInsert ChangeOperation = "insert"
	ChangeOperationUpdate ChangeOperation = "update"
	ChangeOperationDelete ChangeOperation = "delete"
)

var validChangeOperations = []ChangeOperation{
	ChangeOperationInsert,
	ChangeOperationUpdate,
	ChangeOperationDelete,
}

// IsValid reports whether the value matches a known change operation.
func (c ChangeOperation) IsValid() bool {
	for _, candidate := range validChangeOperations {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChangeOperation converts the raw string to ChangeOperation, ignoring
// case and surrounding space.
func ParseChangeOperation(value string) (ChangeOperation, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validChangeOperations {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change operation %q", value)
}
