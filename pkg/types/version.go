package types

import "github.com/Masterminds/semver/v3"

// FormatVersion is the on-disk layout version stamped by CreateMarket
// (§6.2: "the format is stable; unknown future fields go into reserved
// padding"). CompatibleFormat checks a stored version against it; no
// instruction path calls that check.
const FormatVersion = "1.0.0"

// CurrentFormatVersion parses the engine's own format version once.
var CurrentFormatVersion = semver.MustParse(FormatVersion)

// CompatibleFormat reports whether an account stamped with stored can be
// operated on by this build of the engine: same major version, any minor
// or patch (additive, reserved-padding fields only).
func CompatibleFormat(stored string) (bool, error) {
	v, err := semver.NewVersion(stored)
	if err != nil {
		return false, err
	}
	return v.Major() == CurrentFormatVersion.Major(), nil
}
