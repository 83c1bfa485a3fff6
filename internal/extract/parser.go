// Package extract recovers structured key/value fields from the
// unconstrained text a vision-language model produces, and orchestrates
// the full per-request pipeline around it.
package extract

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// Some models emit reasoning blocks before their answer; anything
	// inside them is discarded, including JSON-looking fragments.
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

	codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

	// First brace-delimited fragment without nesting. Deliberately the
	// first match, not the largest or last one.
	braceObjectRe = regexp.MustCompile(`(?s)\{[^{}]*\}`)
)

// Object is a parsed JSON object that remembers its key order.
type Object struct {
	keys   []string
	values map[string]interface{}
}

// Len returns the number of distinct keys.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the keys in the order they appeared in the source text.
func (o *Object) Keys() []string { return o.keys }

// Value returns the value stored under key, or nil.
func (o *Object) Value(key string) interface{} { return o.values[key] }

// Map returns the object as a plain map.
func (o *Object) Map() map[string]interface{} { return o.values }

// Parser recovers a flat key/value object from free-form model output.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a Parser.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log.With().Str("component", "extract").Logger()}
}

// TryExtractObject runs an ordered strategy chain over the model output;
// the first strategy that yields a JSON object wins:
//
//  1. strip reasoning blocks and try the remainder as a single object
//  2. look for a fenced code block and parse its inner content
//  3. take the first brace-delimited substring and parse that
//
// Arrays and scalars are rejected even when syntactically valid. When
// every strategy fails the cleaned text's first 200 characters are
// logged for diagnosis and ok is false.
func (p *Parser) TryExtractObject(raw string) (*Object, bool) {
	if raw == "" {
		return nil, false
	}

	cleaned := strings.TrimSpace(thinkBlockRe.ReplaceAllString(raw, ""))

	if obj, ok := decodeObject(cleaned); ok {
		return obj, true
	}

	if m := codeFenceRe.FindStringSubmatch(cleaned); m != nil {
		if obj, ok := decodeObject(strings.TrimSpace(m[1])); ok {
			return obj, true
		}
	}

	if m := braceObjectRe.FindString(cleaned); m != "" {
		if obj, ok := decodeObject(m); ok {
			return obj, true
		}
	}

	p.log.Warn().Str("cleaned_text", truncate(cleaned, 200)).Msg("could not parse object from model response")
	return nil, false
}

// decodeObject parses s as exactly one JSON object, preserving key
// order. Anything else (array, scalar, trailing tokens, malformed JSON)
// fails.
func decodeObject(s string) (*Object, bool) {
	dec := json.NewDecoder(strings.NewReader(s))

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, false
	}

	obj := &Object{values: make(map[string]interface{})}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}

		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return nil, false
		}

		if _, seen := obj.values[key]; !seen {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = val
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF { // no trailing content
		return nil, false
	}

	return obj, true
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
