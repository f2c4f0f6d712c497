package swmm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Section names of the SWMM input format used by the patcher.
const (
	SectionOptions    = "OPTIONS"
	SectionJunctions  = "JUNCTIONS"
	SectionOutfalls   = "OUTFALLS"
	SectionDividers   = "DIVIDERS"
	SectionStorage    = "STORAGE"
	SectionConduits   = "CONDUITS"
	SectionLosses     = "LOSSES"
	SectionTimeseries = "TIMESERIES"
)

var (
	// ErrSectionNotFound is returned when a patch targets a section the file lacks.
	ErrSectionNotFound = errors.New("section not found")

	// ErrRowNotFound is returned when no row in a section starts with the id.
	ErrRowNotFound = errors.New("row not found")
)

// line is one physical line of an input file. Data lines keep their tokens so
// they can be rewritten; other lines are reproduced verbatim.
type line struct {
	raw     string
	section string   // upper-case section the line belongs to, "" before the first header
	tokens  []string // nil for headers, comments and blank lines
	comment string   // trailing ";..." of a data line
	dirty   bool
}

func (l *line) text() string {
	if !l.dirty {
		return l.raw
	}
	var b strings.Builder
	for i, tok := range l.tokens {
		if i < len(l.tokens)-1 {
			fmt.Fprintf(&b, "%-16s ", tok)
		} else {
			b.WriteString(tok)
		}
	}
	if l.comment != "" {
		b.WriteString(" ")
		b.WriteString(l.comment)
	}
	return b.String()
}

// InputFile is an editable SWMM .inp network definition.
type InputFile struct {
	lines []*line
}

// ParseInput reads a network definition.
func ParseInput(r io.Reader) (*InputFile, error) {
	f := &InputFile{}
	section := ""

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := strings.TrimRight(sc.Text(), "\r")
		l := &line{raw: raw}
		trimmed := strings.TrimSpace(raw)

		switch {
		case strings.HasPrefix(trimmed, "["):
			end := strings.Index(trimmed, "]")
			if end < 0 {
				return nil, fmt.Errorf("parse input: malformed section header %q", trimmed)
			}
			section = strings.ToUpper(strings.TrimSpace(trimmed[1:end]))
			l.section = section
		case trimmed == "" || strings.HasPrefix(trimmed, ";"):
			l.section = section
		default:
			l.section = section
			data, comment, found := strings.Cut(trimmed, ";")
			if found {
				l.comment = ";" + comment
			}
			l.tokens = strings.Fields(data)
		}
		f.lines = append(f.lines, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return f, nil
}

// WriteTo writes the (possibly patched) file.
func (f *InputFile) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, l := range f.lines {
		m, err := bw.WriteString(l.text() + "\n")
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// String renders the file; convenient in tests.
func (f *InputFile) String() string {
	var b strings.Builder
	_, _ = f.WriteTo(&b)
	return b.String()
}

func (f *InputFile) rows(section string) []*line {
	var out []*line
	for _, l := range f.lines {
		if l.section == section && len(l.tokens) > 0 {
			out = append(out, l)
		}
	}
	return out
}

func (f *InputFile) row(section, id string) *line {
	for _, l := range f.rows(section) {
		// option keys are case-insensitive, element ids are not
		if l.tokens[0] == id || (section == SectionOptions && strings.EqualFold(l.tokens[0], id)) {
			return l
		}
	}
	return nil
}

// RowIDs lists the first token of every data row in a section, in file order.
func (f *InputFile) RowIDs(section string) []string {
	rows := f.rows(strings.ToUpper(section))
	ids := make([]string, 0, len(rows))
	for _, l := range rows {
		ids = append(ids, l.tokens[0])
	}
	return ids
}

// HasRow reports whether a section has a row for id.
func (f *InputFile) HasRow(section, id string) bool {
	return f.row(strings.ToUpper(section), id) != nil
}

// Field returns column col (0 = id) of the row for id.
func (f *InputFile) Field(section, id string, col int) (string, bool) {
	l := f.row(strings.ToUpper(section), id)
	if l == nil || col >= len(l.tokens) {
		return "", false
	}
	return l.tokens[col], true
}

// SetField replaces column col (0 = id) of the row for id. Short rows are
// padded with "0" up to the column.
func (f *InputFile) SetField(section, id string, col int, value string) error {
	section = strings.ToUpper(section)
	if col <= 0 {
		return fmt.Errorf("set %s %s: column %d is not editable", section, id, col)
	}
	l := f.row(section, id)
	if l == nil {
		return fmt.Errorf("set %s %s: %w", section, id, ErrRowNotFound)
	}
	for len(l.tokens) <= col {
		l.tokens = append(l.tokens, "0")
	}
	l.tokens[col] = value
	l.dirty = true
	return nil
}

// AppendRow adds a data row at the end of a section.
func (f *InputFile) AppendRow(section string, tokens ...string) error {
	section = strings.ToUpper(section)
	if len(tokens) == 0 {
		return fmt.Errorf("append %s: empty row", section)
	}
	at := f.sectionEnd(section)
	if at < 0 {
		return fmt.Errorf("append %s: %w", section, ErrSectionNotFound)
	}
	f.insert(at, []*line{{section: section, tokens: tokens, dirty: true}})
	return nil
}

// sectionEnd returns the index just past the last non-blank line of a section,
// or -1 when the section is absent.
func (f *InputFile) sectionEnd(section string) int {
	end := -1
	for i, l := range f.lines {
		if l.section != section {
			continue
		}
		if end < 0 || strings.TrimSpace(l.raw) != "" || l.dirty {
			end = i + 1
		}
	}
	return end
}

// HasSection reports whether the file declares a section.
func (f *InputFile) HasSection(section string) bool {
	return f.sectionEnd(strings.ToUpper(section)) >= 0
}

// AddSection appends an empty section with an optional column comment. It is a
// no-op when the section exists.
func (f *InputFile) AddSection(section, columns string) {
	section = strings.ToUpper(section)
	if f.HasSection(section) {
		return
	}
	f.lines = append(f.lines,
		&line{raw: ""},
		&line{raw: "[" + section + "]", section: section},
	)
	if columns != "" {
		f.lines = append(f.lines, &line{raw: columns, section: section})
	}
}

func (f *InputFile) insert(at int, lines []*line) {
	f.lines = append(f.lines[:at], append(lines, f.lines[at:]...)...)
}

// Option returns the value of an [OPTIONS] key.
func (f *InputFile) Option(key string) (string, bool) {
	return f.Field(SectionOptions, strings.ToUpper(key), 1)
}

// SetOption sets an [OPTIONS] key, appending it when missing.
func (f *InputFile) SetOption(key, value string) error {
	key = strings.ToUpper(key)
	if f.row(SectionOptions, key) != nil {
		return f.SetField(SectionOptions, key, 1, value)
	}
	return f.AppendRow(SectionOptions, key, value)
}

// ReplaceSeries removes every [TIMESERIES] row of name and writes rows in its
// place. Each row is the tokens after the series name.
func (f *InputFile) ReplaceSeries(name string, rows [][]string) error {
	at := -1
	kept := f.lines[:0:0]
	for _, l := range f.lines {
		if l.section == SectionTimeseries && len(l.tokens) > 0 && l.tokens[0] == name {
			if at < 0 {
				at = len(kept)
			}
			continue
		}
		kept = append(kept, l)
	}
	if at < 0 {
		return fmt.Errorf("replace series %s: %w", name, ErrRowNotFound)
	}

	fresh := make([]*line, 0, len(rows))
	for _, r := range rows {
		tokens := append([]string{name}, r...)
		fresh = append(fresh, &line{section: SectionTimeseries, tokens: tokens, dirty: true})
	}
	f.lines = kept
	f.insert(at, fresh)
	return nil
}

// SeriesRows returns the rows of a [TIMESERIES] entry, without the name token.
func (f *InputFile) SeriesRows(name string) [][]string {
	var out [][]string
	for _, l := range f.rows(SectionTimeseries) {
		if l.tokens[0] == name {
			out = append(out, append([]string(nil), l.tokens[1:]...))
		}
	}
	return out
}
