package enums

import (
	"fmt"
	"strings"
)

// RegistrationType describes who a registration was made for.
type RegistrationType string

const (
	RegistrationTypeIndividual RegistrationType = "individual"
	RegistrationTypeLodge      RegistrationType = "lodge"
	RegistrationTypeDelegation RegistrationType = "delegation"
)

var validRegistrationTypes = []RegistrationType{
	RegistrationTypeIndividual,
	RegistrationTypeLodge,
	RegistrationTypeDelegation,
}

// IsValid reports whether the value matches a known registration type.
func (r RegistrationType) IsValid() bool {
	for _, candidate := range validRegistrationTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsGroup reports whether the registration was made on behalf of an organisation.
func (r RegistrationType) IsGroup() bool {
	return r == RegistrationTypeLodge || r == RegistrationTypeDelegation
}

// ParseRegistrationType converts the raw string to RegistrationType.
func ParseRegistrationType(value string) (RegistrationType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validRegistrationTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid registration type %q", value)
}

// RegistrationTypeOrDefault parses the value and falls back to individual.
func RegistrationTypeOrDefault(value string) RegistrationType {
	parsed, err := ParseRegistrationType(value)
	if err != nil {
		return RegistrationTypeIndividual
	}
	return parsed
}
