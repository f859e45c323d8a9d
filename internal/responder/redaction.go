package responder

import "regexp"

// A run of ten or more consecutive digits is treated as a phone number or
// identity document leaking back out of the prompt context.
var digitRunPattern = regexp.MustCompile(`\d{10,}`)

// redact replaces the whole answer with a fixed refusal when it carries a
// long digit run, regardless of the surrounding text.
func redact(answer string) string {
	if digitRunPattern.MatchString(answer) {
		return msgRedacted
	}
	return answer
}
