package main

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizarNome remove acentos, espaços nas pontas e passa para maiúsculas.
func normalizarNome(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

// semBOM descarta o BOM UTF-8 no início do fluxo, se houver.
func semBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && string(b) == string(bomUTF8) {
		br.Discard(3)
	}
	return br
}

func indiceColunas(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func campo(row []string, idx map[string]int, nome string) string {
	i, ok := idx[nome]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
