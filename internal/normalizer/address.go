package normalizer

import (
	"fmt"
	"strconv"
	"strings"
)

// SubKeyKind names the collection a subKey belongs to inside a multi-part
// unit. It is part of the cache address so that zone, blank and pair keys
// can never collide.
type SubKeyKind string

const (
	SubKeyNone      SubKeyKind = ""
	SubKeyBlank     SubKeyKind = "blanks"
	SubKeyDropZone  SubKeyKind = "dropZones"
	SubKeyMatching  SubKeyKind = "matchingQuestions"
)

// Address identifies an atomic unit, or one part of a multi-part unit.
// It is the primary key for answers, hint entries and explanation entries.
type Address struct {
	FlatIndex int
	Kind      SubKeyKind
	SubKey    string
}

// UnitAddress addresses a whole unit.
func UnitAddress(flatIndex int) Address {
	return Address{FlatIndex: flatIndex}
}

// PartAddress addresses one zone, blank or pair within a unit.
func PartAddress(flatIndex int, kind SubKeyKind, subKey string) Address {
	return Address{FlatIndex: flatIndex, Kind: kind, SubKey: subKey}
}

// Key renders the address in its canonical stored form:
// "3" for a whole unit, "3.blanks.b2" for a part.
func (a Address) Key() string {
	if a.Kind == SubKeyNone {
		return strconv.Itoa(a.FlatIndex)
	}
	return fmt.Sprintf("%d.%s.%s", a.FlatIndex, a.Kind, a.SubKey)
}

func (a Address) String() string {
	return a.Key()
}

// ParseAddress is the inverse of Key.
func ParseAddress(key string) (Address, error) {
	parts := strings.Split(key, ".")
	switch len(parts) {
	case 1:
		idx, err := strconv.Atoi(parts[0])
		if err != nil {
			return Address{}, fmt.Errorf("invalid address %q: %w", key, err)
		}
		return UnitAddress(idx), nil
	case 3:
		idx, err := strconv.Atoi(parts[0])
		if err != nil {
			return Address{}, fmt.Errorf("invalid address %q: %w", key, err)
		}
		kind := SubKeyKind(parts[1])
		switch kind {
		case SubKeyBlank, SubKeyDropZone, SubKeyMatching:
		default:
			return Address{}, fmt.Errorf("invalid address %q: unknown part collection %q", key, parts[1])
		}
		if parts[2] == "" {
			return Address{}, fmt.Errorf("invalid address %q: empty sub key", key)
		}
		return PartAddress(idx, kind, parts[2]), nil
	default:
		return Address{}, fmt.Errorf("invalid address %q", key)
	}
}
