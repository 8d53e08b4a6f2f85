// Package pipefile streams lines out of a pipeline file and classifies
// each one according to the grammar in seqpipe's pipe-file format:
// empty, comment, attribute-comment, include, variable, procedure
// header, bracket, or command line.
package pipefile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// File is a streaming cursor over a pipe-file's lines.
//
// It tracks the current line and the (filename, lineno) position used
// in load-time diagnostics. Callers advance with ReadLine and read the
// current line with CurrentLine.
type File struct {
	filename string
	scanner  *bufio.Scanner
	closer   io.Closer
	line     string
	lineNo   int
	done     bool
}

// Open opens filename on fs and returns a File positioned before the
// first line.
func Open(fs afero.Fs, filename string) (*File, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	return &File{
		filename: filename,
		scanner:  bufio.NewScanner(f),
		closer:   f,
	}, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	return f.closer.Close()
}

// Filename returns the path this File was opened with.
func (f *File) Filename() string {
	return f.filename
}

// ReadLine advances to the next line and reports whether one was read.
func (f *File) ReadLine() bool {
	if f.done {
		return false
	}

	if !f.scanner.Scan() {
		f.done = true
		return false
	}

	f.line = f.scanner.Text()
	f.lineNo++

	return true
}

// CurrentLine returns the content of the line most recently read.
func (f *File) CurrentLine() string {
	return f.line
}

// Pos renders the current diagnostic position as "filename(lineno)".
func (f *File) Pos() string {
	return fmt.Sprintf("%s(%d)", f.filename, f.lineNo)
}

const attrMarker = "#["

// IsEmptyLine reports whether line contains only whitespace.
func IsEmptyLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

// IsCommentLine reports whether line's first non-whitespace byte is '#'.
func IsCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "#")
}

// IsAttrLine reports whether line is a comment carrying an attribute
// marker, e.g. "#[desc some text]". The attribute body is opaque to
// the core loader; ParseAttrLine only checks that it is well-formed.
func IsAttrLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, attrMarker)
}

// ParseAttrLine validates an attribute-comment line's surface syntax
// (must close its '[' with a matching ']') without interpreting the
// body. It returns false on malformed attributes; the loader treats
// that as a warning, not a load failure.
func ParseAttrLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, attrMarker) {
		return false
	}

	return strings.HasSuffix(trimmed, "]")
}

// IsIncLine reports whether line is an `include <filename>` directive
// and, if so, returns the included filename.
func IsIncLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)

	const prefix = "include"
	if !strings.HasPrefix(trimmed, prefix) {
		return "", false
	}

	rest := trimmed[len(prefix):]
	if rest == "" || !isSpace(rune(rest[0])) {
		return "", false
	}

	name := strings.TrimSpace(rest)
	if name == "" {
		return "", false
	}

	return name, true
}

// IsVarLine reports whether line is a `NAME=VALUE` configuration
// variable assignment and, if so, returns the name and value.
func IsVarLine(line string) (name, value string, ok bool) {
	trimmed := strings.TrimSpace(line)

	eq := strings.Index(trimmed, "=")
	if eq <= 0 {
		return "", "", false
	}

	candidate := trimmed[:eq]
	if !isIdentifier(candidate) {
		return "", "", false
	}

	return candidate, trimmed[eq+1:], true
}

// IsFuncLine reports whether line is a procedure header
// `NAME() {` / `NAME() {{` / `NAME()` and, if so, returns the
// procedure name and the bracket it opened ("" if the header carried
// no bracket at all, meaning it must appear on a later line).
func IsFuncLine(line string) (name, bracket string, ok bool) {
	trimmed := strings.TrimSpace(line)

	open := strings.Index(trimmed, "(")
	if open <= 0 {
		return "", "", false
	}

	close := strings.Index(trimmed, ")")
	if close != open+1 {
		return "", "", false
	}

	candidate := trimmed[:open]
	if !isIdentifier(candidate) {
		return "", "", false
	}

	rest := strings.TrimSpace(trimmed[close+1:])

	switch {
	case rest == "":
		return candidate, "", true
	case rest == "{":
		return candidate, "{", true
	case rest == "{{":
		return candidate, "{{", true
	default:
		return "", "", false
	}
}

// IsLeftBracket reports whether line (after trimming) is exactly '{'
// or '{{', returning the matched bracket.
func IsLeftBracket(line string) (bracket string, ok bool) {
	trimmed := strings.TrimSpace(line)

	switch trimmed {
	case "{":
		return "{", true
	case "{{":
		return "{{", true
	default:
		return "", false
	}
}

// IsRightBracket reports whether line (after trimming) is exactly '}'
// or '}}', returning the matched bracket.
func IsRightBracket(line string) (bracket string, ok bool) {
	trimmed := strings.TrimSpace(line)

	switch trimmed {
	case "}":
		return "}", true
	case "}}":
		return "}}", true
	default:
		return "", false
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			continue
		case r >= '0' && r <= '9' && i > 0:
			continue
		default:
			return false
		}
	}

	return true
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
