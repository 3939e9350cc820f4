package infrastructure

import "strings"

// ShellEscape quotes s so it can be pasted into a shell verbatim. Only the
// displayed command lines in the tool logs go through this; exec.Command
// passes arguments directly and needs no quoting.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}

	needsEscape := false
	for _, c := range s {
		if isShellSpecialChar(c) {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}

	// Single-quote everything; an embedded single quote becomes '"'"'
	// (close, quoted quote, reopen).
	var result strings.Builder
	result.WriteString("'")
	for _, c := range s {
		if c == '\'' {
			result.WriteString("'\"'\"'")
		} else {
			result.WriteRune(c)
		}
	}
	result.WriteString("'")
	return result.String()
}

// ShellEscapeCommand renders a binary and its arguments as one shell-safe
// line for the tool logs.
func ShellEscapeCommand(binary string, args ...string) string {
	escaped := ShellEscape(binary)
	for _, arg := range args {
		escaped += " " + ShellEscape(arg)
	}
	return escaped
}

func isShellSpecialChar(c rune) bool {
	switch c {
	case ' ', '\t', '\'', '"', '$', '`', '\\', '!', '*', '?', '[', ']',
		'(', ')', '{', '}', '|', ';', '<', '>', '&', '~', '#', '%', '\n', '\r':
		return true
	default:
		return false
	}
}
