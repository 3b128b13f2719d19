package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// CellRef addresses a cell by 1-based row and column.
type CellRef struct {
	Row int
	Col int
}

// String renders the reference in A1 notation.
func (c CellRef) String() string {
	return ColumnLetter(c.Col) + strconv.Itoa(c.Row)
}

// ColumnLetter converts a 1-based column number to its letters: 1 is A, 27 is AA.
func ColumnLetter(n int) string {
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

// ColumnNumber is the inverse of ColumnLetter.
func ColumnNumber(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, fmt.Errorf("empty column")
	}

	n := 0
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column %q", letters)
		}
		n = n*26 + int(r-'A') + 1
	}
	return n, nil
}

// ParseCellRef parses A1 notation such as "D2". Absolute markers are not accepted.
func ParseCellRef(s string) (CellRef, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return CellRef{}, fmt.Errorf("invalid cell reference %q", s)
	}

	col, err := ColumnNumber(s[:i])
	if err != nil {
		return CellRef{}, fmt.Errorf("invalid cell reference %q: %w", s, err)
	}

	row, err := strconv.Atoi(s[i:])
	if err != nil || row < 1 {
		return CellRef{}, fmt.Errorf("invalid cell reference %q", s)
	}

	return CellRef{Row: row, Col: col}, nil
}

// RewriteReference replaces every standalone occurrence of from in formula
// with to. Longer references that merely contain from (B20, AB2) and text
// inside string literals are left alone.
func RewriteReference(formula string, from, to CellRef) string {
	target := from.String()
	replacement := to.String()

	var b strings.Builder
	inString := false

	for i := 0; i < len(formula); {
		c := formula[i]

		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			i++
			continue
		}

		if !inString && matchesAt(formula, i, target) {
			b.WriteString(replacement)
			i += len(target)
			continue
		}

		b.WriteByte(c)
		i++
	}

	return b.String()
}

func matchesAt(s string, i int, target string) bool {
	if !strings.HasPrefix(s[i:], target) {
		return false
	}
	if i > 0 {
		prev := s[i-1]
		if isLetter(prev) || isDigit(prev) || prev == '_' || prev == '.' {
			return false
		}
	}
	if end := i + len(target); end < len(s) {
		next := s[end]
		if isLetter(next) || isDigit(next) || next == '_' || next == '(' {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
