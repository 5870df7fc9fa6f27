package valueobjects

import "errors"

// edgeIDPrefix is the stable prefix every edge identifier carries.
const edgeIDPrefix = "edge"

// EdgeID is a value object representing a unique edge identifier.
type EdgeID struct {
	value string
}

// NewEdgeID creates a new random, prefixed EdgeID.
func NewEdgeID() EdgeID {
	return EdgeID{value: newPrefixedID(edgeIDPrefix)}
}

// NewEdgeIDFromString creates an EdgeID from an existing string.
func NewEdgeIDFromString(id string) (EdgeID, error) {
	if id == "" {
		return EdgeID{}, errors.New("edge ID cannot be empty")
	}
	parsed, err := parsePrefixedID(edgeIDPrefix, id)
	if err != nil {
		return EdgeID{}, err
	}
	return EdgeID{value: parsed}, nil
}

// String returns the string representation of the EdgeID.
func (id EdgeID) String() string {
	return id.value
}

// Equals checks if two EdgeIDs are equal.
func (id EdgeID) Equals(other EdgeID) bool {
	return id.value == other.value
}

// IsZero checks if the EdgeID is the zero value.
func (id EdgeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler.
func (id EdgeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *EdgeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("EdgeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
