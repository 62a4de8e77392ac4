package casemap

import "strings"

// SepStream yields successive substrings of s separated by sep.
type SepStream struct {
	rest        string
	sep         byte
	allowEmpty  bool
	exhausted   bool
}

// NewSepStream constructs a SepStream over s. When allowEmpty is false,
// consecutive separators are collapsed and empty tokens are skipped.
func NewSepStream(s string, sep byte, allowEmpty bool) *SepStream {
	return &SepStream{rest: s, sep: sep, allowEmpty: allowEmpty}
}

// Next returns the next token and true, or ("", false) once exhausted.
func (s *SepStream) Next() (string, bool) {
	for {
		if s.exhausted {
			return "", false
		}

		idx := strings.IndexByte(s.rest, s.sep)
		var tok string
		if idx < 0 {
			tok = s.rest
			s.rest = ""
			s.exhausted = true
		} else {
			tok = s.rest[:idx]
			s.rest = s.rest[idx+1:]
		}

		if tok == "" && !s.allowEmpty {
			if s.exhausted {
				return "", false
			}
			continue
		}

		return tok, true
	}
}

// TokenStream splits an IRC parameter tail into "middle" params followed by
// an optional trailing param (the text after " :").
type TokenStream struct {
	rest      string
	trailing  string
	hasTrail  bool
	done      bool
}

// NewTokenStream builds a TokenStream over the parameter portion of a line
// (everything after the command).
func NewTokenStream(s string) *TokenStream {
	ts := &TokenStream{rest: s}
	if idx := strings.Index(s, " :"); idx >= 0 {
		ts.rest = s[:idx]
		ts.trailing = s[idx+2:]
		ts.hasTrail = true
	} else if strings.HasPrefix(s, ":") {
		ts.rest = ""
		ts.trailing = s[1:]
		ts.hasTrail = true
	}
	return ts
}

// Next returns the next middle param, then the trailing param (if any),
// then (,"", false).
func (ts *TokenStream) Next() (string, bool) {
	if ts.done {
		return "", false
	}

	ts.rest = strings.TrimLeft(ts.rest, " ")
	if ts.rest != "" {
		idx := strings.IndexByte(ts.rest, ' ')
		if idx < 0 {
			tok := ts.rest
			ts.rest = ""
			return tok, true
		}
		tok := ts.rest[:idx]
		ts.rest = ts.rest[idx+1:]
		return tok, true
	}

	if ts.hasTrail {
		ts.hasTrail = false
		ts.done = true
		return ts.trailing, true
	}

	ts.done = true
	return "", false
}

// PortParser parses a list like "a,b,c-d,e" into the individual port
// numbers it denotes. When rejectOverlap is true, a range that overlaps a
// previously seen port is an error.
func PortParser(spec string, rejectOverlap bool) ([]int, error) {
	seen := make(map[int]bool)
	var out []int

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			lo, err := atoiPort(part[:dash])
			if err != nil {
				return nil, err
			}
			hi, err := atoiPort(part[dash+1:])
			if err != nil {
				return nil, err
			}
			for p := lo; p <= hi; p++ {
				if rejectOverlap && seen[p] {
					return nil, ErrPortOverlap
				}
				seen[p] = true
				out = append(out, p)
			}
			continue
		}

		p, err := atoiPort(part)
		if err != nil {
			return nil, err
		}
		if rejectOverlap && seen[p] {
			return nil, ErrPortOverlap
		}
		seen[p] = true
		out = append(out, p)
	}

	return out, nil
}

func atoiPort(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, ErrInvalidPort
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidPort
		}
		n = n*10 + int(s[i]-'0')
	}
	if n < 1 || n > 65535 {
		return 0, ErrInvalidPort
	}
	return n, nil
}
