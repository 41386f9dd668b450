// Package parse converts between computer display labels and their
// structured form. A label is the lab's letter followed by the computer
// number, e.g. "A12" for computer 12 in "Laboratorio A".
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var labelRe = regexp.MustCompile(`^([A-Za-z])\s*-?\s*(\d+)$`)

// ParsedLabel holds the structured data parsed from a computer label.
type ParsedLabel struct {
	LabLetter string
	Number    int
}

// ParseLabel extracts the lab letter and computer number from a label such
// as "A12", "a-12", or "B 3".
func ParseLabel(raw string) (ParsedLabel, error) {
	s := strings.TrimSpace(raw)
	m := labelRe.FindStringSubmatch(s)
	if m == nil {
		return ParsedLabel{}, fmt.Errorf("unable to parse computer label: %q", raw)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return ParsedLabel{}, fmt.Errorf("invalid computer number in label: %q", raw)
	}
	return ParsedLabel{LabLetter: strings.ToUpper(m[1]), Number: n}, nil
}

// FormatLabel builds the display label from a lab name and a computer
// number. The lab letter is the last letter of the lab name, so
// "Laboratorio A" yields "A".
func FormatLabel(labName string, number int) string {
	letter := ""
	for _, r := range labName {
		if unicode.IsLetter(r) {
			letter = strings.ToUpper(string(r))
		}
	}
	return fmt.Sprintf("%s%d", letter, number)
}
