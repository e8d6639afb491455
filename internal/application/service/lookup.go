package service

import (
	"strconv"
	"strings"
)

// DefaultDetailSegments are the URL path segments that precede a voucher identifier
// in links printed on vouchers.
var DefaultDetailSegments = []string{"canhoto"}

// Reference is a parsed scan or typed identifier
type Reference struct {
	Raw        string
	Identifier string
	ID         int64
	Numeric    bool
}

// Empty reports whether nothing usable was entered
func (r Reference) Empty() bool {
	return r.Identifier == ""
}

// ParseReference extracts the voucher identifier from scanned or typed input.
// For a URL containing one of the detail segments, the identifier is the path
// component following it, without query string or fragment. Anything else is
// taken as is: digits are a candidate internal id, other text a public code.
func ParseReference(raw string, segments ...string) Reference {
	if len(segments) == 0 {
		segments = DefaultDetailSegments
	}

	value := strings.TrimSpace(raw)
	for _, segment := range segments {
		marker := "/" + strings.Trim(segment, "/") + "/"
		if idx := strings.LastIndex(value, marker); idx >= 0 {
			value = value[idx+len(marker):]
			if cut := strings.IndexAny(value, "?#"); cut >= 0 {
				value = value[:cut]
			}
			value = strings.Trim(value, "/ ")
			if slash := strings.Index(value, "/"); slash >= 0 {
				value = value[:slash]
			}
			break
		}
	}

	ref := Reference{Raw: raw, Identifier: value}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil && id > 0 {
		ref.ID = id
		ref.Numeric = true
	}
	return ref
}
