package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"cvtailor/internal/errors"

	"github.com/xeipuuv/gojsonschema"
)

var codeFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// ParseError describes a model response that could not be turned into the
// expected structure. Excerpt is the cleaned text the decoder saw.
type ParseError struct {
	Reason  string
	Excerpt string
	Issues  []string
	Cause   error
}

func (e *ParseError) Error() string {
	msg := "unparseable model output: " + e.Reason
	if len(e.Issues) > 0 {
		msg += " (" + strings.Join(e.Issues, "; ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Schema is a compiled JSON Schema used to check model output
type Schema struct {
	schema *gojsonschema.Schema
}

// MustCompileSchema compiles a JSON Schema document, panicking on error.
// Intended for package-level schema literals.
func MustCompileSchema(doc string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("invalid JSON schema: %v", err))
	}
	return &Schema{schema: s}
}

// ParseStructuredOutput decodes a model response into T. It tolerates the
// usual wrapping models add: markdown code fences, prose around the object
// and trailing commas. When schema is non-nil the cleaned document must
// validate against it.
func ParseStructuredOutput[T any](text string, schema *Schema) (T, error) {
	var out T

	cleaned, err := extractJSONObject(text)
	if err != nil {
		return out, wrapParseError(err)
	}

	if schema != nil {
		result, err := schema.schema.Validate(gojsonschema.NewStringLoader(cleaned))
		if err != nil {
			return out, wrapParseError(&ParseError{Reason: "invalid JSON", Excerpt: excerpt(cleaned), Cause: err})
		}
		if !result.Valid() {
			issues := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				issues = append(issues, e.String())
			}
			return out, wrapParseError(&ParseError{Reason: "schema mismatch", Excerpt: excerpt(cleaned), Issues: issues})
		}
	}

	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, wrapParseError(&ParseError{Reason: "decode failed", Excerpt: excerpt(cleaned), Cause: err})
	}
	return out, nil
}

func wrapParseError(pe error) error {
	return errors.NewAIError(errors.ErrCodeAIParseFailed, "Failed to parse AI response", pe)
}

// extractJSONObject returns the outermost JSON object in text with trailing
// commas removed.
func extractJSONObject(text string) (string, error) {
	s := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", &ParseError{Reason: "no JSON object found", Excerpt: excerpt(s)}
	}
	end := matchingBrace(s, start)
	if end < 0 {
		return "", &ParseError{Reason: "unterminated JSON object", Excerpt: excerpt(s)}
	}

	obj := stripTrailingCommas(s[start : end+1])
	if !json.Valid([]byte(obj)) {
		return "", &ParseError{Reason: "invalid JSON", Excerpt: excerpt(obj)}
	}
	return obj, nil
}

// jsonScanner tracks whether a byte-wise walk over JSON text is inside a string
type jsonScanner struct {
	inString bool
	escaped  bool
}

// step consumes c and reports whether it is structural, i.e. outside a string
// and not a quote
func (js *jsonScanner) step(c byte) bool {
	switch {
	case js.escaped:
		js.escaped = false
	case js.inString && c == '\\':
		js.escaped = true
	case c == '"':
		js.inString = !js.inString
	case js.inString:
	default:
		return true
	}
	return false
}

// matchingBrace finds the brace closing the one at open, skipping string contents
func matchingBrace(s string, open int) int {
	depth := 0
	var js jsonScanner
	for i := open; i < len(s); i++ {
		c := s[i]
		if !js.step(c) {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripTrailingCommas drops commas directly before a closing brace or bracket.
// String values are left alone.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var js jsonScanner
	for i := 0; i < len(s); i++ {
		c := s[i]
		if js.step(c) && c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func excerpt(s string) string {
	const limit = 200
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
