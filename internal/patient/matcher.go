package patient

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchScore classifies how well a filename-derived name agrees with the
// demographic record. It is a value, never an error: a non-match is a
// legitimate result.
type MatchScore int

const (
	NoMatch MatchScore = iota
	PartialMatch
	MixedFullMatch
	FullMatch
)

func (s MatchScore) String() string {
	switch s {
	case FullMatch:
		return "FullMatch"
	case MixedFullMatch:
		return "MixedFullMatch"
	case PartialMatch:
		return "PartialMatch"
	default:
		return "NoMatch"
	}
}

// Accepted reports whether a score passes under the given strictness.
// Strict mode downgrades PartialMatch to rejection.
func Accepted(s MatchScore, strict bool) bool {
	switch s {
	case FullMatch, MixedFullMatch:
		return true
	case PartialMatch:
		return !strict
	default:
		return false
	}
}

// MatchName scores fileName (the name embedded in the filenames) against the
// demographic record. Both sides are folded to a single Unicode normal form
// before comparison, so composed and decomposed input behave identically.
//
// The family name must match the tail of the filename tokens token-for-token
// (multi-word and hyphenated family names included), which also rejects
// transposed given/family order. Every given name in the record must appear
// among the remaining filename tokens, either exactly or as an
// accent-stripped equivalent; matches that needed accent stripping score
// MixedFullMatch instead of FullMatch.
func MatchName(fileName string, d Details) MatchScore {
	fileTokens := tokenize(fileName)
	famTokens := tokenize(d.FamilyName)
	if len(fileTokens) == 0 || len(famTokens) == 0 {
		return NoMatch
	}

	familyOK, familyExact := familyMatches(fileTokens, famTokens)

	// Transposed order ("Smith Jane" for Jane Smith) is never acceptable,
	// not even as a partial match.
	if !familyOK && familyLeadsTokens(fileTokens, famTokens) {
		return NoMatch
	}

	var givenTokens []string
	if familyOK {
		givenTokens = fileTokens[:len(fileTokens)-len(famTokens)]
	} else {
		givenTokens = fileTokens
	}

	givenOK, givenExact := givenMatches(givenTokens, d.GivenNames)

	switch {
	case familyOK && givenOK && familyExact && givenExact:
		return FullMatch
	case familyOK && givenOK:
		return MixedFullMatch
	case familyOK || givenOK:
		return PartialMatch
	default:
		return NoMatch
	}
}

// DobMatches compares a dd-mm-yyyy filename date of birth against the
// record's ISO date. An absent record date is treated as a match: the
// demographics service does not always carry one.
func DobMatches(fileDob string, d Details) bool {
	if d.DateOfBirth == "" {
		return true
	}
	fromFile, err := time.Parse("02-01-2006", fileDob)
	if err != nil {
		return false
	}
	fromRecord, err := time.Parse("2006-01-02", d.DateOfBirth)
	if err != nil {
		return false
	}
	return fromFile.Equal(fromRecord)
}

// familyMatches reports whether famTokens appear, in order, as the tail of
// fileTokens. The second result is false when any token only matched after
// accent stripping.
func familyMatches(fileTokens, famTokens []string) (ok, exact bool) {
	if len(fileTokens) < len(famTokens) {
		return false, false
	}
	tail := fileTokens[len(fileTokens)-len(famTokens):]
	exact = true
	for i, want := range famTokens {
		switch {
		case tail[i] == want:
		case stripAccents(tail[i]) == stripAccents(want):
			exact = false
		default:
			return false, false
		}
	}
	return true, exact
}

// familyLeadsTokens reports whether the family name appears at the front of
// the filename tokens (with at least one token following it), which marks a
// transposed family/given order.
func familyLeadsTokens(fileTokens, famTokens []string) bool {
	if len(fileTokens) <= len(famTokens) {
		return false
	}
	for i, want := range famTokens {
		if stripAccents(fileTokens[i]) != stripAccents(want) {
			return false
		}
	}
	return true
}

// givenMatches reports whether every record given name appears among the
// filename's given tokens. The second result is false when any name only
// matched after accent stripping.
func givenMatches(fileGiven, recordGiven []string) (ok, exact bool) {
	if len(recordGiven) == 0 {
		return false, false
	}
	exact = true
	for _, want := range recordGiven {
		w := canonical(want)
		found := false
		for _, have := range fileGiven {
			if have == w {
				found = true
				break
			}
			if stripAccents(have) == stripAccents(w) {
				found = true
				exact = false
				break
			}
		}
		if !found {
			return false, false
		}
	}
	return true, exact
}

// tokenize lowercases, normalizes to NFC, and splits on whitespace.
// Hyphenated names stay single tokens.
func tokenize(s string) []string {
	return strings.Fields(canonical(s))
}

// canonical folds a name to the single normal form used for all comparisons.
func canonical(s string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(s)))
}

// accentStripper removes combining marks after decomposition, then
// recomposes. Conversion happens only at this boundary so the rest of the
// matcher works on one form.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}
