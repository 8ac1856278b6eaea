package tagindex

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// ParseDistance parses the "mismatch[:indel[:total]]" distance string
// described in spec.md §4.2. An empty string yields all-zero defaults.
func ParseDistance(s string) (mismatch, indel, total int, err error) {
	if s == "" {
		return 0, 0, 0, nil
	}
	fields := strings.Split(s, ":")
	if len(fields) > 3 {
		return 0, 0, 0, newError(InvalidDistance, "malformed distance string %q", s)
	}
	vals := [3]int{}
	for i, f := range fields {
		if f == "" {
			continue
		}
		n, convErr := strconv.Atoi(f)
		if convErr != nil {
			return 0, 0, 0, newError(InvalidDistance, "could not convert %q to int in distance string %q", f, s)
		}
		vals[i] = n
	}
	mismatch, indel, total = vals[0], vals[1], vals[2]
	if mismatch < 0 || indel < 0 || total < 0 {
		return 0, 0, 0, newError(InvalidDistance, "negative value in distance string %q", s)
	}
	if total != 0 && (mismatch+indel < total || mismatch > total || indel > total) {
		return 0, 0, 0, newError(InvalidDistance, "distance string %q is inconsistent", s)
	}
	if total == 0 {
		total = mismatch + indel
	}
	return mismatch, indel, total, nil
}

// ParseLocation parses the "file[:start[:end]]" (or comma-delimited)
// location string described in spec.md §4.2. nFiles < 0 disables the
// file-index upper-bound check (used when the number of streams is not
// yet known). An empty string yields file=-1, start=0, end=0.
func ParseLocation(s string, nFiles int) (file, start, end int, err error) {
	file, start, end = -1, 0, 0
	if s == "" {
		return file, start, end, nil
	}
	delim := ":"
	if strings.Contains(s, ",") {
		delim = ","
	}
	fields := strings.Split(s, delim)
	if len(fields) > 3 {
		return 0, 0, 0, newError(InvalidLocation, "malformed location string %q", s)
	}
	vals := [3]int{-1, 0, 0}
	for i, f := range fields {
		if f == "" {
			continue
		}
		n, convErr := strconv.Atoi(f)
		if convErr != nil {
			return 0, 0, 0, newError(InvalidLocation, "could not convert %q to int in location string %q", f, s)
		}
		vals[i] = n
	}
	file, start, end = vals[0], vals[1], vals[2]
	if file < -1 || (nFiles >= 0 && file >= nFiles) || start < 0 || end < 0 || (end <= start && end != 0) {
		return 0, 0, 0, newError(InvalidLocation, "malformed location string %q", s)
	}
	return file, start, end, nil
}

// recognizedColumns are the config table column headers understood by
// LoadConfig, besides the mandatory BARCODES.
var recognizedColumns = map[string]bool{
	"BARCODES":  true,
	"DISTANCES": true,
	"LOCATIONS": true,
	"IDS":       true,
	"MINFINDS":  true,
	"MAXFINDS":  true,
	"EXCLUDE":   true,
	"LEFT":      true,
	"RIGHT":     true,
}

// LoadConfig parses a whitespace-delimited tag table from r and registers
// each row via AddTag. Lines beginning with '#' and blank lines are
// skipped. The header row is case-insensitive and must name BARCODES;
// duplicate or unrecognized column names are fatal.
func (r *Registry) LoadConfig(rd io.Reader) error {
	scanner := bufio.NewScanner(rd)
	var header []string
	row := 0
	for scanner.Scan() {
		row++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if header == nil {
			header = make([]string, len(fields))
			seen := map[string]bool{}
			hasBarcodes := false
			for i, f := range fields {
				h := strings.ToUpper(f)
				header[i] = h
				if seen[h] {
					return newRowError(ConfigError, row, h, "duplicate column name")
				}
				seen[h] = true
				if h == "BARCODES" {
					hasBarcodes = true
				}
				if !recognizedColumns[h] {
					return newRowError(ConfigError, row, h, "unrecognized column name")
				}
			}
			if !hasBarcodes {
				return newRowError(ConfigError, row, "", "header must contain a BARCODES column")
			}
			continue
		}
		if err := r.loadConfigRow(row, header, fields); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return r.Close()
}

// loadConfigRow builds one TagRecord from a config table row and
// registers it. LEFT/RIGHT carry the tag's trim extra-offset when
// present and non-empty; supplying both is an InvalidTrim error (spec.md
// §3: "a tag cannot carry both left and right trim").
func (r *Registry) loadConfigRow(row int, header, fields []string) error {
	var (
		barcodes    string
		name        string
		distanceStr string
		locationStr string
		minFinds    int
		maxFinds    int
		exclude     bool
		leftStr     string
		rightStr    string
		haveLeft    bool
		haveRight   bool
	)
	for i := 0; i < len(fields) && i < len(header); i++ {
		field := fields[i]
		switch header[i] {
		case "BARCODES":
			barcodes = field
		case "IDS":
			name = field
		case "DISTANCES":
			distanceStr = field
		case "LOCATIONS":
			locationStr = field
		case "MINFINDS":
			n, err := strconv.Atoi(field)
			if err != nil {
				return newRowError(ConfigError, row, "MINFINDS", "not an integer: %q", field)
			}
			minFinds = n
		case "MAXFINDS":
			n, err := strconv.Atoi(field)
			if err != nil {
				return newRowError(ConfigError, row, "MAXFINDS", "not an integer: %q", field)
			}
			maxFinds = n
		case "EXCLUDE":
			exclude = field == "1" || strings.EqualFold(field, "true")
		case "LEFT":
			leftStr, haveLeft = field, field != ""
		case "RIGHT":
			rightStr, haveRight = field, field != ""
		}
	}

	mismatch, indel, total, err := ParseDistance(distanceStr)
	if err != nil {
		return err
	}
	file, posStart, posEnd, err := ParseLocation(locationStr, r.nFiles)
	if err != nil {
		return err
	}

	if haveLeft && haveRight {
		return newRowError(InvalidTrim, row, "LEFT/RIGHT", "a tag cannot carry both left and right trim")
	}
	trim := Trim{}
	switch {
	case haveLeft:
		n, cerr := strconv.Atoi(leftStr)
		if cerr != nil {
			return newRowError(InvalidTrim, row, "LEFT", "not an integer: %q", leftStr)
		}
		trim = Trim{Dir: TrimLeft, ExtraOffset: n}
	case haveRight:
		n, cerr := strconv.Atoi(rightStr)
		if cerr != nil {
			return newRowError(InvalidTrim, row, "RIGHT", "not an integer: %q", rightStr)
		}
		trim = Trim{Dir: TrimRight, ExtraOffset: n}
	}

	if name == "" {
		name = barcodes
	}
	seqs, initiator, terminator := splitSequences(barcodes)
	rec := TagRecord{
		Name:              name,
		Sequences:         seqs,
		Initiator:         initiator,
		Terminator:        terminator,
		Mismatch:          mismatch,
		Indel:             indel,
		Total:             total,
		File:              file,
		PosStart:          posStart,
		PosEnd:            posEnd,
		MinFinds:          minFinds,
		MaxFinds:          maxFinds,
		IncludeInBarcode:  !exclude,
		Trim:              trim,
	}
	if _, err := r.AddTag(rec); err != nil {
		return err
	}
	return nil
}
