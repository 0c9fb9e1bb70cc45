package routes

import (
	"fmt"
	"path"
	"strings"
)

// WildcardParam is the Params key holding the path matched by a trailing *.
const WildcardParam = "*"

// Params holds the values captured by a pattern.
type Params map[string]string

// Pattern is a compiled route pattern.
//
// Grammar: slash-separated segments. A literal segment matches itself, a
// ":name" segment matches exactly one non-empty segment, and a final "*"
// matches the rest of the path, which may be empty. Trailing slashes are
// ignored.
type Pattern struct {
	raw      string
	segments []segment
	wildcard bool
}

type segment struct {
	literal string
	param   string
}

// CompilePattern parses raw into a Pattern.
func CompilePattern(raw string) (*Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("pattern must start with '/'")
	}

	trimmed := strings.TrimSuffix(raw[1:], "/")
	p := &Pattern{raw: raw}
	if trimmed == "" {
		return p, nil
	}

	parts := strings.Split(trimmed, "/")
	seen := make(map[string]bool)
	for i, part := range parts {
		switch {
		case part == "":
			return nil, fmt.Errorf("empty segment at position %d", i)
		case part == WildcardParam:
			if i != len(parts)-1 {
				return nil, fmt.Errorf("wildcard must be the last segment")
			}
			p.wildcard = true
		case strings.Contains(part, "*"):
			return nil, fmt.Errorf("segment %q mixes a wildcard with other characters", part)
		case strings.HasPrefix(part, ":"):
			name := part[1:]
			if name == "" {
				return nil, fmt.Errorf("parameter at position %d has no name", i)
			}
			if seen[name] {
				return nil, fmt.Errorf("parameter %q declared twice", name)
			}
			seen[name] = true
			p.segments = append(p.segments, segment{param: name})
		default:
			p.segments = append(p.segments, segment{literal: part})
		}
	}

	return p, nil
}

// String returns the pattern as declared.
func (p *Pattern) String() string {
	return p.raw
}

// Canonical returns a normalised form used to detect duplicate declarations.
// Two patterns share a canonical form exactly when they accept the same
// paths, so parameter names are dropped: "/blog/:id" becomes "/blog/:".
func (p *Pattern) Canonical() string {
	var b strings.Builder
	for _, seg := range p.segments {
		b.WriteByte('/')
		if seg.param != "" {
			b.WriteByte(':')
		} else {
			b.WriteString(seg.literal)
		}
	}
	if p.wildcard {
		b.WriteString("/*")
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Match reports whether urlPath is accepted and returns the captured params.
func (p *Pattern) Match(urlPath string) (Params, bool) {
	parts := splitPath(urlPath)

	if len(parts) < len(p.segments) {
		return nil, false
	}
	if !p.wildcard && len(parts) != len(p.segments) {
		return nil, false
	}

	var params Params
	for i, seg := range p.segments {
		if seg.param != "" {
			if params == nil {
				params = make(Params)
			}
			params[seg.param] = parts[i]
			continue
		}
		if parts[i] != seg.literal {
			return nil, false
		}
	}

	if p.wildcard {
		if params == nil {
			params = make(Params)
		}
		params[WildcardParam] = strings.Join(parts[len(p.segments):], "/")
	}

	return params, true
}

// splitPath cleans urlPath and splits it into its non-empty segments.
func splitPath(urlPath string) []string {
	cleaned := path.Clean("/" + urlPath)
	cleaned = strings.Trim(cleaned, "/")
	if cleaned == "" {
		return nil
	}
	return strings.Split(cleaned, "/")
}
