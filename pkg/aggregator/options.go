package aggregator

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Default classification patterns. Code and binary patterns are searched
// anywhere in the path. Governance patterns must match the whole path, so
// they only match files at the repository root.
const (
	DefaultCodePattern = `\.bazel$|\.bazelrc$|\.bzl$|\.c$|\.cc$|\.cp$|\.cpp$|\.cs$|\.cxx$|\.c\+\+$|` +
		`\.go$|\.h$|\.hpp$|\.js$|\.mjs$|\.java$|\.pl$|\.py$|\.rs$|\.sh$|\.tf$|\.ts$`
	DefaultBinaryPattern = `\.7z$|\.a$|\.abb$|\.apk$|\.app$|\.appx$|\.arc$|\.bin$|\.bz2$|\.class$|\.deb$|` +
		`\.dll$|\.dmg$|\.exe$|\.gz$|\.ipa$|\.iso$|\.jar$|\.lib$|\.msi$|\.o$|\.obj$|\.rar$|` +
		`\.rpm$|\.so$|\.tar$|\.xar$|\.xz$|\.zip$|\.zst$|\.Z$`
	DefaultLicensePattern  = `(?i)(LICEN[CS]E|COPYING)(\.[A-Za-z0-9]+)?`
	DefaultAdoptersPattern = `(?i)ADOPTERS(\.[A-Za-z0-9]+)?`
)

// Default thresholds.
const (
	DefaultPonyThreshold     = 0.5
	DefaultElephantThreshold = 0.5
	DefaultRegularThreshold  = 0.8
	DefaultCasualThreshold   = 0.95
)

// DefaultWindow is the analysis window length used when no start is given.
const DefaultWindow = 365 * 24 * time.Hour

// Sentinel construction errors.
var (
	ErrInvalidPattern   = errors.New("invalid file pattern")
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrInvalidWindow    = errors.New("invalid analysis window")
)

// Settings is the effective configuration of an Aggregator.
type Settings struct {
	From              time.Time
	To                time.Time
	CodePattern       string
	BinaryPattern     string
	LicensePattern    string
	AdoptersPattern   string
	PonyThreshold     float64
	ElephantThreshold float64
	RegularThreshold  float64
	CasualThreshold   float64
}

// DefaultSettings returns the settings used when no options are given,
// except for the window which is resolved against the clock in New.
func DefaultSettings() Settings {
	return Settings{
		CodePattern:       DefaultCodePattern,
		BinaryPattern:     DefaultBinaryPattern,
		LicensePattern:    DefaultLicensePattern,
		AdoptersPattern:   DefaultAdoptersPattern,
		PonyThreshold:     DefaultPonyThreshold,
		ElephantThreshold: DefaultElephantThreshold,
		RegularThreshold:  DefaultRegularThreshold,
		CasualThreshold:   DefaultCasualThreshold,
	}
}

// Option configures an Aggregator.
type Option func(*Settings)

// WithWindow sets the analysis window. A zero bound keeps its default.
func WithWindow(from, to time.Time) Option {
	return func(s *Settings) {
		s.From = from
		s.To = to
	}
}

// WithCodePattern overrides the code file pattern. Empty keeps the default.
func WithCodePattern(expr string) Option {
	return func(s *Settings) {
		if expr != "" {
			s.CodePattern = expr
		}
	}
}

// WithBinaryPattern overrides the binary file pattern. Empty keeps the default.
func WithBinaryPattern(expr string) Option {
	return func(s *Settings) {
		if expr != "" {
			s.BinaryPattern = expr
		}
	}
}

// WithGovernancePatterns overrides the license and adopters patterns.
// Empty values keep the defaults.
func WithGovernancePatterns(license, adopters string) Option {
	return func(s *Settings) {
		if license != "" {
			s.LicensePattern = license
		}

		if adopters != "" {
			s.AdoptersPattern = adopters
		}
	}
}

// WithPonyThreshold sets the contributor share the pony factor must exceed.
func WithPonyThreshold(threshold float64) Option {
	return func(s *Settings) { s.PonyThreshold = threshold }
}

// WithElephantThreshold sets the organization share the elephant factor must exceed.
func WithElephantThreshold(threshold float64) Option {
	return func(s *Settings) { s.ElephantThreshold = threshold }
}

// WithDevCategoryThresholds sets the regular and casual cutoffs.
func WithDevCategoryThresholds(regular, casual float64) Option {
	return func(s *Settings) {
		s.RegularThreshold = regular
		s.CasualThreshold = casual
	}
}

// resolveWindow fills the missing window bounds relative to now and
// normalizes both to UTC.
func (s *Settings) resolveWindow(now time.Time) {
	if s.To.IsZero() {
		s.To = now
	}

	if s.From.IsZero() {
		s.From = s.To.Add(-DefaultWindow)
	}

	s.From = s.From.UTC()
	s.To = s.To.UTC()
}

func (s *Settings) validate() error {
	if !s.From.Before(s.To) {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidWindow, s.From, s.To)
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"pony", s.PonyThreshold},
		{"elephant", s.ElephantThreshold},
		{"regular", s.RegularThreshold},
		{"casual", s.CasualThreshold},
	}

	for _, th := range thresholds {
		if th.value <= 0 || th.value > 1 {
			return fmt.Errorf("%w: %s threshold %v outside (0, 1]", ErrInvalidThreshold, th.name, th.value)
		}
	}

	if s.RegularThreshold > s.CasualThreshold {
		return fmt.Errorf("%w: regular threshold %v exceeds casual threshold %v",
			ErrInvalidThreshold, s.RegularThreshold, s.CasualThreshold)
	}

	return nil
}

type patterns struct {
	code     *regexp.Regexp
	binary   *regexp.Regexp
	license  *regexp.Regexp
	adopters *regexp.Regexp
}

func compilePatterns(s Settings) (patterns, error) {
	var (
		compiled patterns
		err      error
	)

	compiled.code, err = compile("code", s.CodePattern, false)
	if err != nil {
		return patterns{}, err
	}

	compiled.binary, err = compile("binary", s.BinaryPattern, false)
	if err != nil {
		return patterns{}, err
	}

	compiled.license, err = compile("license", s.LicensePattern, true)
	if err != nil {
		return patterns{}, err
	}

	compiled.adopters, err = compile("adopters", s.AdoptersPattern, true)
	if err != nil {
		return patterns{}, err
	}

	return compiled, nil
}

func compile(name, expr string, anchored bool) (*regexp.Regexp, error) {
	if anchored {
		expr = `^(?:` + expr + `)$`
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPattern, name, err)
	}

	return re, nil
}
