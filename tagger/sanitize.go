package tagger

import "strings"

// reservedNames are device names that Windows refuses as file names.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

const maxNameBytes = 255

// SanitizeText makes a title or artist string safe to use as a file name
// component: it strips the characters \ / : * ? " < > |, drops control
// characters, trims leading/trailing spaces and dots, rejects Windows
// device names, and caps the length. The same function is used everywhere
// a title becomes part of a path so that the expected-name lookup after a
// download matches what was requested from the tool.
func SanitizeText(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), " .")
	if reservedNames[strings.ToUpper(out)] {
		return ""
	}
	if len(out) > maxNameBytes {
		out = out[:maxNameBytes]
		// Don't leave a torn multi-byte rune at the cut.
		out = strings.ToValidUTF8(out, "")
		out = strings.Trim(out, " .")
	}
	return out
}
