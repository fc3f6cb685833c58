package beamline

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[a-z][0-9]{2}(-[0-9])?$`)

// suffixOverrides lists beamlines whose endstation letter is not the
// upper-cased first letter of the name.
var suffixOverrides = map[string]string{
	"i04-1": "J",
	"i09-1": "J",
	"i13-1": "J",
	"i15-1": "J",
	"i19-2": "J",
	"i20-1": "J",
	"i23":   "I",
}

// Prefix holds the PV prefixes derived from a beamline name.
type Prefix struct {
	// Beamline prefixes beamline PVs, e.g. "BL03I".
	Beamline string
	// Insertion prefixes insertion-device PVs, e.g. "SR03I".
	Insertion string
}

// ValidateName checks name has the form "i03" or "i04-1".
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidBeamline, name)
	}
	return nil
}

// NewPrefix derives the prefixes for name. An empty suffix selects the
// override table, falling back to the upper-cased first letter.
//
//	i03   -> BL03I / SR03I
//	p45   -> BL45P / SR45P
//	i04-1 -> BL04J / SR04J
func NewPrefix(name, suffix string) (Prefix, error) {
	if err := ValidateName(name); err != nil {
		return Prefix{}, err
	}
	if suffix == "" {
		suffix = suffixOverrides[name]
	}
	if suffix == "" {
		suffix = strings.ToUpper(name[:1])
	}
	digits := name[1:3]
	return Prefix{
		Beamline:  "BL" + digits + suffix,
		Insertion: "SR" + digits + suffix,
	}, nil
}

// PV joins a device prefix onto the beamline prefix:
// Prefix{Beamline: "BL03I"}.PV("-MO-SAMP-01:") == "BL03I-MO-SAMP-01:".
func (p Prefix) PV(device string) string {
	return p.Beamline + device
}

// InsertionPV joins a device prefix onto the insertion prefix.
func (p Prefix) InsertionPV(device string) string {
	return p.Insertion + device
}
