package filename

import (
	"fmt"
	"testing"
)

func validName(page, total int) string {
	return fmt.Sprintf("%dof%d_Lloyd_George_Record_[Jane Smith]_[9000000009]_[22-10-2010].pdf", page, total)
}

func TestParse_ValidFilename(t *testing.T) {
	p, err := Parse("1of3_Lloyd_George_Record_[Jane Smith]_[9000000009]_[22-10-2010].pdf")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.PageIndex != 1 || p.PageTotal != 3 {
		t.Errorf("expected page 1 of 3, got %d of %d", p.PageIndex, p.PageTotal)
	}
	if p.Name != "Jane Smith" {
		t.Errorf("expected name Jane Smith, got %q", p.Name)
	}
	if p.NHSNumber != "9000000009" {
		t.Errorf("expected identifier 9000000009, got %q", p.NHSNumber)
	}
	if p.Dob != "22-10-2010" {
		t.Errorf("expected dob 22-10-2010, got %q", p.Dob)
	}
	if p.Extension != "pdf" {
		t.Errorf("expected extension pdf, got %q", p.Extension)
	}
}

func TestParse_StripsDirectories(t *testing.T) {
	p, err := Parse("upload/9000000009/" + validName(1, 1))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Filename != validName(1, 1) {
		t.Errorf("expected base filename, got %q", p.Filename)
	}
}

func TestParse_AccentedNames(t *testing.T) {
	cases := []string{
		// Precomposed (NFC).
		"1of1_Lloyd_George_Record_[Zoë O'Brien-Müller]_[9000000009]_[22-10-2010].pdf",
		// Decomposed (NFD): e + combining diaeresis.
		"1of1_Lloyd_George_Record_[Zoë O'Brien]_[9000000009]_[22-10-2010].pdf",
	}
	for _, name := range cases {
		if _, err := Parse(name); err != nil {
			t.Errorf("Parse(%q) failed: %v", name, err)
		}
	}
}

func TestParse_FormatErrors(t *testing.T) {
	cases := []struct {
		label string
		name  string
	}{
		{"missing page prefix", "Lloyd_George_Record_[Jane Smith]_[9000000009]_[22-10-2010].pdf"},
		{"nine digit identifier", "1of1_Lloyd_George_Record_[Jane Smith]_[900000000]_[22-10-2010].pdf"},
		{"digits in name", "1of1_Lloyd_George_Record_[Jane 5mith]_[9000000009]_[22-10-2010].pdf"},
		{"wrong date layout", "1of1_Lloyd_George_Record_[Jane Smith]_[9000000009]_[2010-10-22].pdf"},
		{"impossible date", "1of1_Lloyd_George_Record_[Jane Smith]_[9000000009]_[31-02-2010].pdf"},
		{"page index zero", "0of1_Lloyd_George_Record_[Jane Smith]_[9000000009]_[22-10-2010].pdf"},
		{"page beyond total", "3of2_Lloyd_George_Record_[Jane Smith]_[9000000009]_[22-10-2010].pdf"},
		{"missing extension", "1of1_Lloyd_George_Record_[Jane Smith]_[9000000009]_[22-10-2010]"},
	}
	for _, tc := range cases {
		_, err := Parse(tc.name)
		if KindOf(err) != KindFormat {
			t.Errorf("%s: expected FormatError, got %v", tc.label, err)
		}
	}
}

func TestValidateBatch_ValidSets(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10} {
		names := make([]string, 0, n)
		for page := 1; page <= n; page++ {
			names = append(names, validName(page, n))
		}

		parsed, err := ValidateBatch(names, "9000000009")
		if err != nil {
			t.Fatalf("N=%d: ValidateBatch failed: %v", n, err)
		}

		// pageTotal == N and pages 1..N each appear exactly once.
		pages := make(map[int]int)
		for _, p := range parsed {
			if p.PageTotal != n {
				t.Errorf("N=%d: pageTotal %d", n, p.PageTotal)
			}
			pages[p.PageIndex]++
		}
		for page := 1; page <= n; page++ {
			if pages[page] != 1 {
				t.Errorf("N=%d: page %d appears %d times", n, page, pages[page])
			}
		}
	}
}

func TestValidateBatch_CountMismatch(t *testing.T) {
	// 1of2 and 1of3 in one batch of two files.
	names := []string{validName(1, 2), validName(1, 3)}
	_, err := ValidateBatch(names, "")
	if KindOf(err) != KindCountMismatch {
		t.Errorf("expected CountMismatchError, got %v", err)
	}
}

func TestValidateBatch_Duplicate(t *testing.T) {
	names := []string{validName(1, 2), validName(1, 2)}
	_, err := ValidateBatch(names, "")
	if KindOf(err) != KindDuplicate {
		t.Errorf("expected DuplicateError, got %v", err)
	}
}

func TestValidateBatch_InconsistentNaming(t *testing.T) {
	names := []string{
		validName(1, 2),
		"2of2_Lloyd_George_Record_[John Smith]_[9000000009]_[22-10-2010].pdf",
	}
	_, err := ValidateBatch(names, "")
	if KindOf(err) != KindInconsistentNaming {
		t.Errorf("expected InconsistentNamingError, got %v", err)
	}
}

func TestValidateBatch_IdentifierMismatch(t *testing.T) {
	names := []string{validName(1, 1)}
	_, err := ValidateBatch(names, "9111111111")
	if KindOf(err) != KindIdentifierMismatch {
		t.Errorf("expected IdentifierMismatchError, got %v", err)
	}
}

func TestValidateBatch_Empty(t *testing.T) {
	_, err := ValidateBatch(nil, "")
	if KindOf(err) != KindFormat {
		t.Errorf("expected FormatError for empty batch, got %v", err)
	}
}

func TestValidateBatch_Idempotent(t *testing.T) {
	names := []string{validName(1, 2), validName(1, 3)}
	first := KindOf(mustErr(t, names))
	for i := 0; i < 5; i++ {
		if got := KindOf(mustErr(t, names)); got != first {
			t.Fatalf("run %d: verdict changed from %s to %s", i, first, got)
		}
	}
}

func mustErr(t *testing.T, names []string) error {
	t.Helper()
	_, err := ValidateBatch(names, "")
	if err == nil {
		t.Fatal("expected a validation error")
	}
	return err
}
