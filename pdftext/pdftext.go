// Package pdftext pulls plain text out of saved PDF files by decoding the
// text-showing operators of each page's content stream.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ExtractFile reads the PDF at path and returns its text, one page per
// paragraph. Returns an error when the file is not a readable PDF or
// carries no text at all (e.g. pure image scans).
func ExtractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Extract(f)
}

// Extract reads a PDF from r and returns its text.
func Extract(r io.ReadSeeker) (string, error) {
	ctx, err := api.ReadValidateAndOptimize(r, model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}

	var out strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text := pageText(ctx, pageNr)
		if text == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("pdf has no extractable text")
	}
	return out.String(), nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return decodeStream(data)
}

// decodeStream walks content stream lines and collects the arguments of
// the text-showing operators Tj, TJ and '. Positioning operators Td/TD
// and T* contribute separators.
func decodeStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			writeStrings(&sb, line, false)
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			writeStrings(&sb, line, true)
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return normalize(sb.String())
}

func writeStrings(sb *strings.Builder, line []byte, newline bool) {
	for _, lit := range stringLiterals(line) {
		text := decodeLiteral(lit)
		if text == "" {
			continue
		}
		if newline {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
	}
}

// stringLiterals returns the contents of the (…) literals on one line,
// honoring escaped parens.
func stringLiterals(line []byte) [][]byte {
	var lits [][]byte
	for i := 0; i < len(line); i++ {
		if line[i] != '(' {
			continue
		}
		start := i + 1
		depth := 1
		j := start
		for ; j < len(line) && depth > 0; j++ {
			switch line[j] {
			case '\\':
				j++
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		end := j - 1
		if end < start {
			end = start
		}
		lits = append(lits, line[start:end])
		i = j - 1
	}
	return lits
}

// decodeLiteral resolves PDF string escapes, including octal bytes.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// normalize collapses whitespace runs and drops non-printable runes.
func normalize(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
