package resolver

import (
	"regexp"
	"strings"
)

// refPattern is the identity pattern shared by both syntaxes: project
// name, colon, variable name, nothing else.
var refPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+:[A-Za-z0-9_-]+$`)

// StoredRecord is the raw persisted form of a variable's value fields.
// Exactly one of the three pointers must be non-nil.
type StoredRecord struct {
	RawValue    *string
	LinkedTo    *string
	ConcatParts *string
}

// ParseValueKind turns a stored record into a structured value kind. It
// enforces the one-value-kind invariant at the boundary and parses the
// reference syntax of linked and concatenated values. The returned error,
// when non-nil, is always a *ResolutionError.
func ParseValueKind(rec StoredRecord) (ValueKind, error) {
	set := 0
	if rec.RawValue != nil {
		set++
	}
	if rec.LinkedTo != nil {
		set++
	}
	if rec.ConcatParts != nil {
		set++
	}
	switch {
	case set == 0:
		return ValueKind{}, newError(ErrAmbiguousValueKind, "no value kind set")
	case set > 1:
		return ValueKind{}, newError(ErrAmbiguousValueKind, "%d value kinds set, want exactly one", set)
	}

	switch {
	case rec.RawValue != nil:
		return ValueKind{Kind: RawKind, Raw: *rec.RawValue}, nil
	case rec.LinkedTo != nil:
		target, err := ParseReference(*rec.LinkedTo)
		if err != nil {
			return ValueKind{}, err
		}
		return ValueKind{Kind: LinkedKind, Link: &target}, nil
	default:
		segments, err := ParseConcatenation(*rec.ConcatParts)
		if err != nil {
			return ValueKind{}, err
		}
		return ValueKind{Kind: ConcatenatedKind, Segments: segments}, nil
	}
}

// ParseReference parses a single PROJECT:VAR reference token. The returned
// error, when non-nil, is always a *ResolutionError of kind
// MalformedReference.
func ParseReference(s string) (VariableID, error) {
	if !refPattern.MatchString(s) {
		return VariableID{}, newError(ErrMalformedReference, "invalid reference %q, want PROJECT:VAR", s)
	}
	idx := strings.IndexByte(s, ':')
	return VariableID{Project: s[:idx], Name: s[idx+1:]}, nil
}

// ParseConcatenation parses a concat_parts value into an ordered segment
// list. Two syntaxes coexist and are selected by sniffing the input:
//
//   - quoted: `"PROJECT:VAR"` tokens interleaved with arbitrary literal
//     separators, which are preserved verbatim (including empty ones);
//   - legacy: PROJECT:VAR tokens split on `|` when the input contains a
//     pipe and no quote character. The pipe is a stored delimiter only and
//     never appears in resolved output.
//
// A bare single reference with neither quotes nor pipes parses as a
// one-segment list.
func ParseConcatenation(s string) ([]Segment, error) {
	switch {
	case strings.ContainsRune(s, '"'):
		return parseQuotedConcat(s)
	case strings.ContainsRune(s, '|'):
		return parseLegacyConcat(s)
	default:
		target, err := ParseReference(s)
		if err != nil {
			return nil, newError(ErrMalformedConcatenation, "invalid reference token %q", s)
		}
		return []Segment{RefSegment(target)}, nil
	}
}

// parseQuotedConcat scans left to right: a double quote opens a reference
// token read greedily to the closing quote; anything between tokens is a
// literal segment kept verbatim. Zero-length literals contribute no
// segment, so back-to-back references concatenate directly.
func parseQuotedConcat(s string) ([]Segment, error) {
	var segments []Segment
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '"')
		if open < 0 {
			// Trailing literal after the last reference.
			segments = append(segments, LiteralSegment(s[i:]))
			break
		}
		open += i
		if open > i {
			segments = append(segments, LiteralSegment(s[i:open]))
		}
		end := strings.IndexByte(s[open+1:], '"')
		if end < 0 {
			return nil, newError(ErrMalformedConcatenation, "unterminated quote in %q", s[open:])
		}
		end += open + 1
		token := s[open+1 : end]
		target, err := ParseReference(token)
		if err != nil {
			return nil, newError(ErrMalformedConcatenation, "invalid reference token %q", token)
		}
		segments = append(segments, RefSegment(target))
		i = end + 1
	}
	return segments, nil
}

// parseLegacyConcat splits strictly on the pipe character. Every token
// must be a bare reference; no literal segments are produced, so adjacent
// resolved values concatenate with nothing in between. Preserved
// bit-for-bit for old stored data.
func parseLegacyConcat(s string) ([]Segment, error) {
	parts := strings.Split(s, "|")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		target, err := ParseReference(part)
		if err != nil {
			return nil, newError(ErrMalformedConcatenation, "invalid reference token %q", part)
		}
		segments = append(segments, RefSegment(target))
	}
	return segments, nil
}
