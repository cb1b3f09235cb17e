package compliance

// TINKind identifies which of the four Malaysian tax identifier shapes a
// candidate string matched.
type TINKind string

const (
	TINCorporate   TINKind = "corporate"    // C + 10 digits
	TINIndividual  TINKind = "individual"   // 12 digits, no prefix
	TINGovernment  TINKind = "government"   // G + 10 digits
	TINNonResident TINKind = "non_resident" // N + 10 digits
)

// ClassifyTIN matches a candidate string against the four TIN shapes.
// Matching is case-sensitive (a lowercase prefix is invalid) and strict on
// length: embedded whitespace or extra characters make the candidate
// invalid. It never fails; an unrecognized string returns ("", false).
func ClassifyTIN(s string) (TINKind, bool) {
	switch len(s) {
	case 11:
		if !allDigits(s[1:]) {
			return "", false
		}
		switch s[0] {
		case 'C':
			return TINCorporate, true
		case 'G':
			return TINGovernment, true
		case 'N':
			return TINNonResident, true
		}
		return "", false
	case 12:
		if allDigits(s) {
			return TINIndividual, true
		}
		return "", false
	default:
		return "", false
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
