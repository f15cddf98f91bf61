package lexer

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize prepares raw file bytes for the source map: a UTF-8 byte order
// mark is stripped and the text is brought to NFC, so lexically equivalent
// files produce identical token streams and every span offset addresses
// one canonical text.
func Normalize(src []byte) []byte {
	src = bytes.TrimPrefix(src, []byte{0xEF, 0xBB, 0xBF})
	if norm.NFC.IsNormal(src) {
		return src
	}
	return norm.NFC.Bytes(src)
}

// SourceFile owns the original text of one compiled file. Tokens point back
// into it through a Span; rows and columns are derived on demand so tokens
// stay small.
type SourceFile struct {
	Name   string
	Source string
}

// Span locates a token inside its SourceFile by byte offset and length.
type Span struct {
	File   *SourceFile
	Offset int
	Length int
}

// Text returns the original source slice the span covers.
func (s Span) Text() string {
	if s.File == nil || s.Offset+s.Length > len(s.File.Source) {
		return ""
	}
	return s.File.Source[s.Offset : s.Offset+s.Length]
}

// Row returns the 1-based line number of the span's first byte.
func (s Span) Row() int {
	if s.File == nil {
		return 0
	}
	return 1 + strings.Count(s.File.Source[:s.Offset], "\n")
}

// Col returns the 1-based column of the span's first byte.
func (s Span) Col() int {
	if s.File == nil {
		return 0
	}
	return s.Offset - s.lineStart() + 1
}

func (s Span) lineStart() int {
	return strings.LastIndexByte(s.File.Source[:s.Offset], '\n') + 1
}

// SourceLine returns the whole line of source the span starts on, without
// the trailing newline. Diagnostics print it under the file:row:col header.
func (s Span) SourceLine() string {
	if s.File == nil {
		return ""
	}
	start := s.lineStart()
	end := strings.IndexByte(s.File.Source[s.Offset:], '\n')
	if end < 0 {
		return s.File.Source[start:]
	}
	return s.File.Source[start : s.Offset+end]
}

// Position renders the span as "file:row:col".
func (s Span) Position() string {
	if s.File == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File.Name, s.Row(), s.Col())
}
