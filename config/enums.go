package config

import (
	"fmt"
	"strings"
)

// Specification of which declarations are inspected for sprite markers.
type IncludeMode int

const (
	// IncludeModeImplicit considers every background family declaration.
	IncludeModeImplicit IncludeMode = iota
	// IncludeModeExplicit considers any declaration carrying a sprite marker.
	IncludeModeExplicit
)

var includeModeNames = [...]string{"implicit", "explicit"}

// IncludeModeNames returns list of possible string values of IncludeMode.
func IncludeModeNames() []string {
	return append([]string(nil), includeModeNames[:]...)
}

func (m IncludeMode) String() string {
	if m >= 0 && int(m) < len(includeModeNames) {
		return includeModeNames[m]
	}
	return fmt.Sprintf("IncludeMode(%d)", int(m))
}

// ParseIncludeMode attempts to convert a string to an IncludeMode.
func ParseIncludeMode(name string) (IncludeMode, error) {
	for i, n := range includeModeNames {
		if strings.EqualFold(n, name) {
			return IncludeMode(i), nil
		}
	}
	return IncludeModeImplicit, fmt.Errorf("%s is not a valid IncludeMode, try [%s]", name, strings.Join(includeModeNames[:], ", "))
}

func (m IncludeMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(includeModeNames) {
		return nil, fmt.Errorf("invalid IncludeMode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *IncludeMode) UnmarshalText(text []byte) error {
	v, err := ParseIncludeMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
