//go:build !windows

package config

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// Runes that cannot be part of a generated file name. The path list
// separator is excluded along with the path separator so names survive
// PATH-like configuration values.
const badNameRunes = string(os.PathSeparator) + string(os.PathListSeparator)

// CleanFileName strips runes not allowed in file names. Leading dots go too,
// hidden files make poor conversion output. A name reduced to nothing comes
// back as a placeholder rather than an empty string.
func CleanFileName(in string) string {
	out := strings.Map(func(sym rune) rune {
		if strings.ContainsRune(badNameRunes, sym) {
			return -1
		}
		return sym
	}, in)
	out = strings.TrimLeft(out, ".")
	if out == "" {
		out = "_bad_file_name_"
	}
	return out
}

// EnableColorOutput reports whether the stream can take colorized output.
func EnableColorOutput(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}
