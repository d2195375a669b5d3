package elements

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

const lineLength = 69

// Parse reads NORAD two-line element sets from r and returns the decoded
// entries. Both the 3-line format (name line followed by the element
// lines) and the bare 2-line format are accepted. Malformed entries are
// skipped with a warning log so one bad record cannot poison a catalog
// refresh.
func Parse(r io.Reader, logger *slog.Logger) ([]OrbitalElements, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading element data: %w", err)
	}

	var entries []OrbitalElements
	for i := 0; i < len(lines); {
		var name, line1, line2 string
		switch {
		case strings.HasPrefix(lines[i], "1 ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "2 "):
			line1, line2 = lines[i], lines[i+1]
			i += 2
		case i+2 < len(lines) && strings.HasPrefix(lines[i+1], "1 ") && strings.HasPrefix(lines[i+2], "2 "):
			name, line1, line2 = strings.TrimSpace(lines[i]), lines[i+1], lines[i+2]
			i += 3
		default:
			logger.Warn("skipping malformed element entry", "line_index", i, "line", lines[i])
			i++
			continue
		}

		entry, err := ParseLines(line1, line2)
		if err != nil {
			logger.Warn("skipping unparseable element entry", "name", name, "error", err)
			continue
		}
		entry.Name = name
		entries = append(entries, entry)
	}

	return entries, nil
}

// ParseLines decodes a single element set from its two fixed-column lines.
func ParseLines(line1, line2 string) (OrbitalElements, error) {
	var e OrbitalElements

	line1 = padLine(line1)
	line2 = padLine(line2)

	if line1[0] != '1' {
		return e, fmt.Errorf("line 1 does not start with '1'")
	}
	if line2[0] != '2' {
		return e, fmt.Errorf("line 2 does not start with '2'")
	}
	if err := verifyChecksum(line1); err != nil {
		return e, fmt.Errorf("line 1: %w", err)
	}
	if err := verifyChecksum(line2); err != nil {
		return e, fmt.Errorf("line 2: %w", err)
	}

	var err error
	if e.NORADID, err = parseInt(line1[2:7]); err != nil {
		return e, fmt.Errorf("catalog number: %w", err)
	}
	id2, err := parseInt(line2[2:7])
	if err != nil {
		return e, fmt.Errorf("catalog number on line 2: %w", err)
	}
	if id2 != e.NORADID {
		return e, fmt.Errorf("catalog number mismatch: %d vs %d", e.NORADID, id2)
	}

	e.Classification = line1[7]
	e.IntlDesignator = strings.TrimSpace(line1[9:17])

	year, err := parseInt(line1[18:20])
	if err != nil {
		return e, fmt.Errorf("epoch year: %w", err)
	}
	if year >= 57 {
		e.EpochYear = 1900 + year
	} else {
		e.EpochYear = 2000 + year
	}
	if e.EpochDay, err = parseFloat(line1[20:32]); err != nil {
		return e, fmt.Errorf("epoch day: %w", err)
	}

	if e.MeanMotionDot, err = parseFloat(line1[33:43]); err != nil {
		return e, fmt.Errorf("mean motion derivative: %w", err)
	}
	if e.MeanMotionDDot, err = parseImpliedExp(line1[44:52]); err != nil {
		return e, fmt.Errorf("mean motion second derivative: %w", err)
	}
	if e.Bstar, err = parseImpliedExp(line1[53:61]); err != nil {
		return e, fmt.Errorf("bstar: %w", err)
	}
	if e.ElementSetNum, err = parseInt(line1[64:68]); err != nil {
		return e, fmt.Errorf("element set number: %w", err)
	}

	if e.Inclination, err = parseFloat(line2[8:16]); err != nil {
		return e, fmt.Errorf("inclination: %w", err)
	}
	if e.RAAN, err = parseFloat(line2[17:25]); err != nil {
		return e, fmt.Errorf("raan: %w", err)
	}
	// Eccentricity has an implied leading "0."
	if e.Eccentricity, err = parseFloat("0." + strings.TrimSpace(line2[26:33])); err != nil {
		return e, fmt.Errorf("eccentricity: %w", err)
	}
	if e.ArgPerigee, err = parseFloat(line2[34:42]); err != nil {
		return e, fmt.Errorf("argument of perigee: %w", err)
	}
	if e.MeanAnomaly, err = parseFloat(line2[43:51]); err != nil {
		return e, fmt.Errorf("mean anomaly: %w", err)
	}
	if e.MeanMotion, err = parseFloat(line2[52:63]); err != nil {
		return e, fmt.Errorf("mean motion: %w", err)
	}
	if e.RevNumber, err = parseInt(line2[63:68]); err != nil {
		return e, fmt.Errorf("revolution number: %w", err)
	}

	e.Line1 = line1
	e.Line2 = line2
	return e, nil
}

// padLine extends a short line to the full 69 columns with spaces.
// Historical element cards are sometimes distributed without trailing
// padding or checksum digits.
func padLine(s string) string {
	if len(s) >= lineLength {
		return s
	}
	return s + strings.Repeat(" ", lineLength-len(s))
}

// verifyChecksum checks the modulo-10 digit in column 69. Digits count
// at face value and minus signs count as 1; everything else counts as 0.
// A blank checksum column is accepted.
func verifyChecksum(line string) error {
	ck := line[68]
	if ck == ' ' {
		return nil
	}
	if ck < '0' || ck > '9' {
		return fmt.Errorf("checksum column is not a digit: %q", ck)
	}
	sum := 0
	for i := 0; i < 68; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	if sum%10 != int(ck-'0') {
		return fmt.Errorf("checksum mismatch: computed %d, line has %c", sum%10, ck)
	}
	return nil
}

// Checksum computes the modulo-10 checksum over the first 68 columns.
func Checksum(line string) int {
	line = padLine(line)
	sum := 0
	for i := 0; i < 68; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// parseImpliedExp decodes the compact exponent notation used for bstar
// and the second mean motion derivative: a sign, a five-digit mantissa
// with an implied leading decimal point, and a signed single-digit
// exponent. " 13844-3" decodes as 0.13844e-3.
func parseImpliedExp(field string) (float64, error) {
	s := strings.TrimSpace(field)
	if s == "" || s == "0" || s == "+0" || s == "-0" {
		return 0, nil
	}
	sign := 1.0
	if s[0] == '-' {
		sign = -1.0
		s = s[1:]
	} else if s[0] == '+' {
		s = s[1:]
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("field too short: %q", field)
	}
	mantissa, exp := s[:len(s)-2], s[len(s)-2:]
	m, err := strconv.ParseFloat("0."+strings.TrimSpace(mantissa), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mantissa in %q: %w", field, err)
	}
	x, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(exp), "+"))
	if err != nil {
		return 0, fmt.Errorf("invalid exponent in %q: %w", field, err)
	}
	return sign * m * pow10(x), nil
}

func pow10(x int) float64 {
	v := 1.0
	for i := 0; i < x; i++ {
		v *= 10
	}
	for i := 0; i > x; i-- {
		v /= 10
	}
	return v
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
