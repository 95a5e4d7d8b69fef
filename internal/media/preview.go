// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// previewLines bounds how much of a shared text file is shown inline.
const previewLines = 20

// PreviewText renders the head of a text attachment with syntax
// highlighting picked from the file name. Binary data yields "".
func PreviewText(fileName string, data []byte) string {
	if len(data) == 0 || !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return ""
	}
	lines := strings.SplitN(string(data), "\n", previewLines+1)
	truncated := len(lines) > previewLines
	if truncated {
		lines = lines[:previewLines]
	}
	code := strings.Join(lines, "\n")

	out := highlight(fileName, code)
	if truncated {
		out += "\n…"
	}
	return out
}

func highlight(fileName, code string) string {
	lexer := lexers.Match(fileName)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
