// Package parse canonicalizes the vendors' divergent quasi-JSON wire formats
// into the common candle table. Parsers fail loudly with a common.ParseError
// carrying the offending fragment; they never silently return empty series
// when the wire shape is unexpected.
package parse

import (
	"bytes"
	"errors"

	"github.com/quotefetch/quotes/quotes/common"
)

// StripEnvelope removes the non-JSON wrappers vendors put around their payloads:
// a `callback(` prefix with `)` / `);` suffix, or a `var name=` assignment
// prefix. It scans to the first `{` or `[`, then trims the vendor-known
// trailing pattern. The bytes between are returned untouched.
func StripEnvelope(body []byte) ([]byte, error) {
	objStart := bytes.IndexByte(body, '{')
	arrStart := bytes.IndexByte(body, '[')
	start := objStart
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
	}
	if start == -1 {
		return nil, common.ParseError{Fragment: string(body), Err: errors.New("no JSON payload in envelope")}
	}
	inner := bytes.TrimSpace(body[start:])
	inner = bytes.TrimSuffix(inner, []byte(";"))
	inner = bytes.TrimSuffix(inner, []byte(")"))
	return inner, nil
}

// StripCallback removes a JSONP `callback(` wrapper given the known callback
// name, e.g. `jQuery1124022566445873766972_1617864568131({...});` -> `{...}`.
// Falls back to the generic bracket scan when the name does not appear.
func StripCallback(body []byte, callback string) ([]byte, error) {
	if callback != "" {
		if i := bytes.Index(body, []byte(callback+"(")); i != -1 {
			return StripEnvelope(body[i+len(callback)+1:])
		}
	}
	return StripEnvelope(body)
}

// StripVarAssign removes a JavaScript `var name=` assignment prefix, e.g.
// `min_data_usTSLAOQ={...}` -> `{...}`.
func StripVarAssign(body []byte) ([]byte, error) {
	if i := bytes.IndexByte(body, '='); i != -1 {
		rest := body[i+1:]
		if bytes.IndexByte(rest, '{') != -1 || bytes.IndexByte(rest, '[') != -1 {
			return StripEnvelope(rest)
		}
	}
	return StripEnvelope(body)
}
