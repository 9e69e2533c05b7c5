package common

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotes is the root error kind. Every error the library surfaces
	// matches it via errors.Is.
	ErrQuotes = errors.New("quotes")

	// ErrSymbol means: unsupported symbol prefix, or an unparseable date argument.
	ErrSymbol = fmt.Errorf("%w: bad symbol or date", ErrQuotes)

	// ErrNetwork means: the HTTP fetcher exhausted its retries.
	ErrNetwork = fmt.Errorf("%w: network failure", ErrQuotes)

	// ErrDataSource means: the vendor returned a non-zero code, empty data or a
	// truncated body.
	ErrDataSource = fmt.Errorf("%w: data source failure", ErrQuotes)

	// ErrParse means: the parser cannot locate the expected frequency key or row shape.
	ErrParse = fmt.Errorf("%w: parse failure", ErrQuotes)

	// ErrCache means: a storage backend I/O failure.
	ErrCache = fmt.Errorf("%w: cache failure", ErrQuotes)
)

// NetworkError is raised by the HTTP fetcher after exhausting retries.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("%v: giving up on %v after %v attempts: %v", ErrNetwork, e.URL, e.Attempts, e.Err)
}

// Unwrap makes NetworkError match ErrNetwork (and ErrQuotes) via errors.Is.
func (e NetworkError) Unwrap() error { return ErrNetwork }

// ParseError carries the offending body fragment alongside the parse failure.
// Parsers fail loudly with it rather than silently returning empty series; the
// extension orchestrator's fallback paths depend on that signal.
type ParseError struct {
	Fragment string
	Err      error
}

func (e ParseError) Error() string {
	frag := e.Fragment
	if len(frag) > 120 {
		frag = frag[:120] + "..."
	}
	return fmt.Sprintf("%v: %v (fragment: %q)", ErrParse, e.Err, frag)
}

// Unwrap makes ParseError match ErrParse (and ErrQuotes) via errors.Is.
func (e ParseError) Unwrap() error { return ErrParse }
