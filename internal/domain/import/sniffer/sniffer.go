// Package sniffer identifies which statement dialect a file uses from its
// header line, and decodes raw statement bytes to text.
package sniffer

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Format is a supported statement dialect.
type Format int

const (
	FormatUnknown Format = iota
	FormatA              // Revolut account statement
	FormatB              // Wise statement
	FormatC              // Italian bank statement
)

func (f Format) String() string {
	switch f {
	case FormatA:
		return "FormatA"
	case FormatB:
		return "FormatB"
	case FormatC:
		return "FormatC"
	}
	return "Unknown"
}

// Label is a human readable name for the dialect.
func (f Format) Label() string {
	switch f {
	case FormatA:
		return "Revolut"
	case FormatB:
		return "Wise"
	case FormatC:
		return "Italian bank"
	}
	return "Unknown"
}

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("could not find header row")
)

// Rule recognises one dialect from a cleaned header line.
type Rule struct {
	Format Format
	Match  func(line string) bool
}

// Rules is evaluated in order; the first match wins.
var Rules = []Rule{
	{Format: FormatA, Match: func(line string) bool {
		return strings.HasPrefix(line, "Type,Product,Started Date")
	}},
	{Format: FormatB, Match: func(line string) bool {
		return strings.HasPrefix(line, "TransferWise ID,Date,Amount")
	}},
	{Format: FormatC, Match: func(line string) bool {
		return strings.Contains(line, "Data Operazione") && strings.Contains(line, "Data Valuta")
	}},
}

// Detect classifies a header line.
func Detect(firstLine string) Format {
	line := CleanLine(firstLine)
	for _, rule := range Rules {
		if rule.Match(line) {
			return rule.Format
		}
	}
	return FormatUnknown
}

// DetectText classifies a whole statement by its first line.
func DetectText(text string) Format {
	return Detect(FirstLine(text))
}

// FirstLine returns text up to the first newline.
func FirstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// DetectDelimiter returns ';' when the line contains one, else ','.
func DetectDelimiter(line string) rune {
	if strings.ContainsRune(line, ';') {
		return ';'
	}
	return ','
}

// CleanLine strips a UTF-8 BOM, carriage returns and surrounding space.
func CleanLine(line string) string {
	line = strings.TrimPrefix(line, "\uFEFF")
	line = strings.TrimRight(line, "\r")
	return strings.TrimSpace(line)
}

// DecodeStatement converts raw file bytes to text. Bytes that are not valid
// UTF-8 are decoded as ISO-8859-1, which is what Italian bank exports use.
func DecodeStatement(raw []byte) (string, Format, error) {
	if len(raw) == 0 {
		return "", FormatUnknown, ErrEmptyFile
	}

	var text string
	if utf8.Valid(raw) {
		text = string(raw)
	} else {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", FormatUnknown, err
		}
		text = string(decoded)
	}
	text = strings.TrimPrefix(text, "\uFEFF")

	return text, DetectText(text), nil
}

// Headers splits a header line into trimmed column names.
func Headers(line string, delimiter rune) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(CleanLine(line)))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, ErrNoHeadersFound
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	return headers, nil
}

// Fingerprint hashes normalized header names so a bank layout can be
// recognised in logs across imports.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
