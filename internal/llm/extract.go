package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON value out of free-form model text (spec §4.C's
// extract_json, grounded on the reference implementation's
// extract_json_from_response): it strips a fenced code block if present,
// then — if what remains starts with '{' or '[' — scans for the matching
// balanced delimiter and discards anything trailing it. Text that never
// starts a JSON value is reported as invalid output rather than guessed at.
func ExtractJSON(text string, out any) error {
	candidate := stripFence(text)
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return &Error{Kind: FailureInvalidOutput, Msg: "empty model output"}
	}

	open := candidate[0]
	if open != '{' && open != '[' {
		return &Error{Kind: FailureInvalidOutput, Msg: "model output does not start a JSON value"}
	}

	balanced, ok := scanBalanced(candidate)
	if !ok {
		return &Error{Kind: FailureInvalidOutput, Msg: "unbalanced JSON in model output"}
	}

	if err := json.Unmarshal([]byte(balanced), out); err != nil {
		return &Error{Kind: FailureInvalidOutput, Msg: "invalid structured output", Err: err}
	}
	return nil
}

// stripFence removes a ```json / ``` fenced code block, if present, along
// with any prose before the opening fence and after the closing one,
// leaving everything between the fences. Text with no fence, or text that
// already starts with '{' or '[', is returned trimmed but otherwise untouched.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	idx := strings.Index(trimmed, "```")
	if idx < 0 || (idx > 0 && (trimmed[0] == '{' || trimmed[0] == '[')) {
		return trimmed
	}
	trimmed = trimmed[idx:]

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence line (``` or ```json) ...
	body := lines[1:]
	// ... and the closing fence, if one is present.
	for i := len(body) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(body[i]), "```") {
			body = body[:i]
			break
		}
	}
	return strings.Join(body, "\n")
}

// scanBalanced returns the shortest prefix of s that is a balanced
// {...} or [...] expression, ignoring braces/brackets inside string
// literals, and whether one was found.
func scanBalanced(s string) (string, bool) {
	open := s[0]
	close := byte('}')
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}
