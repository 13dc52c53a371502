// Package filename parses and validates Lloyd George record filenames.
//
// Inbound files must follow the fixed pattern
//
//	{page}of{total}_Lloyd_George_Record_[{name}]_[{10-digit id}]_[{dd-mm-yyyy}].{ext}
//
// Parsing and batch validation are pure functions: no I/O, no logging, and
// identical input always yields the identical verdict.
package filename

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one of the permanent validation failures. Batches that
// fail with any of these kinds are reported and never retried.
type Kind string

const (
	KindFormat             Kind = "FormatError"
	KindCountMismatch      Kind = "CountMismatchError"
	KindDuplicate          Kind = "DuplicateError"
	KindInconsistentNaming Kind = "InconsistentNamingError"
	KindIdentifierMismatch Kind = "IdentifierMismatchError"
)

// ValidationError is the tagged error returned for every validation failure.
// Callers branch on Kind rather than on message text.
type ValidationError struct {
	Kind     Kind
	Filename string
	Detail   string
}

func (e *ValidationError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Filename, e.Detail)
}

// ParsedFile is the structured result of parsing one filename.
type ParsedFile struct {
	Filename  string
	PageIndex int
	PageTotal int
	Name      string
	NHSNumber string
	Dob       string
	Extension string

	// suffix is everything after "{page}of{total}". It must be
	// byte-identical across all files in a batch.
	suffix string
}

// Name characters: letters in either Unicode normal form (so combining
// marks are accepted alongside precomposed letters), spaces, hyphens,
// apostrophes.
var filePattern = regexp.MustCompile(
	`^(\d+)of(\d+)(_Lloyd_George_Record_\[([\p{L}\p{M} '-]+)\]_\[(\d{10})\]_\[(\d{2}-\d{2}-\d{4})\]\.([A-Za-z0-9]+))$`)

// Parse extracts the structured fields from a single filename. The input may
// be a full object key; only the base name is parsed. Returns a
// ValidationError of kind FormatError if the name does not match the pattern.
func Parse(name string) (ParsedFile, error) {
	base := path.Base(name)

	m := filePattern.FindStringSubmatch(base)
	if m == nil {
		return ParsedFile{}, &ValidationError{
			Kind: KindFormat, Filename: base,
			Detail: "filename does not match the Lloyd George record pattern",
		}
	}

	pageIndex, _ := strconv.Atoi(m[1])
	pageTotal, _ := strconv.Atoi(m[2])

	if pageIndex < 1 || pageIndex > pageTotal {
		return ParsedFile{}, &ValidationError{
			Kind: KindFormat, Filename: base,
			Detail: fmt.Sprintf("page index %d outside range 1..%d", pageIndex, pageTotal),
		}
	}

	dob := m[6]
	if _, err := time.Parse("02-01-2006", dob); err != nil {
		return ParsedFile{}, &ValidationError{
			Kind: KindFormat, Filename: base,
			Detail: fmt.Sprintf("invalid date of birth %q", dob),
		}
	}

	return ParsedFile{
		Filename:  base,
		PageIndex: pageIndex,
		PageTotal: pageTotal,
		Name:      strings.TrimSpace(m[4]),
		NHSNumber: m[5],
		Dob:       dob,
		Extension: m[7],
		suffix:    m[3],
	}, nil
}

// ValidateBatch parses every filename and applies the whole-batch rules:
//
//  1. every filename matches the pattern (FormatError)
//  2. the declared page total equals the batch's file count (CountMismatchError)
//  3. no two files share a filename (DuplicateError)
//  4. the suffix after the page index is byte-identical across the batch
//     (InconsistentNamingError)
//  5. if targetNHSNumber is non-empty, it equals the embedded identifier
//     (IdentifierMismatchError)
//
// On success the returned slice is ordered as the input and, together with
// the rules above, guarantees pages {1..N} each appear exactly once.
func ValidateBatch(names []string, targetNHSNumber string) ([]ParsedFile, error) {
	if len(names) == 0 {
		return nil, &ValidationError{Kind: KindFormat, Detail: "batch contains no files"}
	}

	parsed := make([]ParsedFile, 0, len(names))
	for _, n := range names {
		p, err := Parse(n)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	for _, p := range parsed {
		if p.PageTotal != len(names) {
			return nil, &ValidationError{
				Kind: KindCountMismatch, Filename: p.Filename,
				Detail: fmt.Sprintf("declared total %d but batch has %d files", p.PageTotal, len(names)),
			}
		}
	}

	seen := make(map[string]struct{}, len(parsed))
	for _, p := range parsed {
		if _, dup := seen[p.Filename]; dup {
			return nil, &ValidationError{
				Kind: KindDuplicate, Filename: p.Filename,
				Detail: "filename appears more than once in the batch",
			}
		}
		seen[p.Filename] = struct{}{}
	}

	for _, p := range parsed[1:] {
		if p.suffix != parsed[0].suffix {
			return nil, &ValidationError{
				Kind: KindInconsistentNaming, Filename: p.Filename,
				Detail: "name, identifier, date or extension differs from the rest of the batch",
			}
		}
	}

	if targetNHSNumber != "" && parsed[0].NHSNumber != targetNHSNumber {
		return nil, &ValidationError{
			Kind: KindIdentifierMismatch, Filename: parsed[0].Filename,
			Detail: fmt.Sprintf("filenames carry identifier ending %s, expected the submitted batch identifier", parsed[0].NHSNumber[6:]),
		}
	}

	return parsed, nil
}

// KindOf returns the validation kind of err, or "" if err is not a
// ValidationError.
func KindOf(err error) Kind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
