package utils

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// disallowed caches the compiled "not allowed" expressions keyed by character class body.
var disallowed sync.Map

// CompileAllowed compiles the expression matching runs of characters outside the
// allowed character class body, for example "a-zA-Z0-9".
func CompileAllowed(allowed string) (*regexp.Regexp, error) {
	if re, ok := disallowed.Load(allowed); ok {
		return re.(*regexp.Regexp), nil
	}
	if allowed == "" {
		return nil, fmt.Errorf("allowed character set is empty")
	}
	re, err := regexp.Compile(`[^` + allowed + `]+`)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed character set %q: %w", allowed, err)
	}
	disallowed.Store(allowed, re)
	return re, nil
}

// Urlize converts text to a separator-joined token sequence by:
// - Replacing every run of characters outside the allowed set with the separator
// - Collapsing consecutive separators into one
// - Trimming separators from start and end
//
// Case is preserved. An invalid allowed set leaves only the separator-free input trimmed;
// configurations are validated with CompileAllowed before they reach this point.
func Urlize(text, separator, allowed string) string {
	re, err := CompileAllowed(allowed)
	if err != nil {
		return strings.TrimSpace(text)
	}

	text = re.ReplaceAllString(text, separator)
	if separator == "" {
		return text
	}

	// Remove multiple consecutive separators
	double := separator + separator
	for strings.Contains(text, double) {
		text = strings.ReplaceAll(text, double, separator)
	}

	// Trim separators from start and end
	for strings.HasPrefix(text, separator) {
		text = text[len(separator):]
	}
	for strings.HasSuffix(text, separator) {
		text = text[:len(text)-len(separator)]
	}

	return text
}
