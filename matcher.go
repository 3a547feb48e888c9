/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package xrouter

import (
	"strings"

	"github.com/pkg/errors"
)

// WildcardPattern is the literal pattern that matches any pathname or hostname
// and binds no parameters.
const WildcardPattern = "*"

// Params holds the named segment values extracted by a PatternMatcher. A
// successful match always produces a non-nil map, even when the pattern binds
// nothing.
type Params map[string]string

// ReverseHostname reverses the dot separated segments of hostname so that
// most-general-to-most-specific comparison runs left-to-right, e.g.
// "www.example.com" becomes "com.example.www". Applying it twice yields the
// original hostname.
func ReverseHostname(hostname string) string {
	segments := strings.Split(hostname, ".")

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	return strings.Join(segments, ".")
}

type patternSegment struct {
	literal string
	param   string
}

// PatternMatcher is a compiled hostname or pathname pattern predicate. A
// pattern is a separator delimited sequence of segments where a segment
// beginning with ':' binds the candidate segment at that position to a named
// parameter. Matchers are immutable and safe for concurrent use.
type PatternMatcher struct {
	source   string
	wildcard bool
	segments []patternSegment

	separator string
	foldCase  bool
	reversed  bool
}

// CompilePathnamePattern compiles a '/' separated pathname pattern such as
// "/products/:category_id/:product_id". Segment comparison is exact. Empty
// segments produced by duplicated separators are ignored and a single
// trailing slash on a candidate is tolerated.
func CompilePathnamePattern(pattern string) (*PatternMatcher, error) {
	matcher := &PatternMatcher{
		source:    pattern,
		separator: "/",
	}

	if err := matcher.compile(pattern); err != nil {
		return nil, errors.Errorf("invalid pathname pattern [%s]: %v", pattern, err)
	}

	return matcher, nil
}

// CompileHostnamePattern compiles a '.' separated hostname pattern such as
// ":subdomain.example.com". Segment comparison is case-insensitive and runs
// over the reversed segment sequence so the most general segment is compared
// first.
func CompileHostnamePattern(pattern string) (*PatternMatcher, error) {
	matcher := &PatternMatcher{
		source:    pattern,
		separator: ".",
		foldCase:  true,
		reversed:  true,
	}

	if err := matcher.compile(pattern); err != nil {
		return nil, errors.Errorf("invalid hostname pattern [%s]: %v", pattern, err)
	}

	return matcher, nil
}

func (matcher *PatternMatcher) compile(pattern string) error {
	if pattern == "" {
		return errors.New("pattern must not be empty")
	}

	if pattern == WildcardPattern {
		matcher.wildcard = true
		return nil
	}

	//a separator-only pattern such as "/" compiles to zero segments and
	//matches only candidates that also reduce to zero segments
	rawSegments := splitSegments(pattern, matcher.separator)

	for _, rawSegment := range rawSegments {
		if strings.HasPrefix(rawSegment, ":") {
			param := rawSegment[1:]

			if param == "" {
				return errors.New("parameter segments must be named")
			}

			matcher.segments = append(matcher.segments, patternSegment{param: param})
			continue
		}

		literal := rawSegment
		if matcher.foldCase {
			literal = strings.ToLower(literal)
		}

		matcher.segments = append(matcher.segments, patternSegment{literal: literal})
	}

	if matcher.reversed {
		reverseSegments(matcher.segments)
	}

	return nil
}

// Source returns the pattern text the matcher was compiled from.
func (matcher *PatternMatcher) Source() string {
	return matcher.source
}

// Match tests candidate against the compiled pattern. On success it returns
// the named parameters bound during the walk and true. On failure it returns
// nil and false.
func (matcher *PatternMatcher) Match(candidate string) (Params, bool) {
	if matcher.wildcard {
		return Params{}, true
	}

	if matcher.foldCase {
		candidate = strings.ToLower(candidate)
	}

	candidateSegments := splitSegments(candidate, matcher.separator)

	if len(candidateSegments) != len(matcher.segments) {
		return nil, false
	}

	if matcher.reversed {
		reverseStrings(candidateSegments)
	}

	params := Params{}

	for i, segment := range matcher.segments {
		if segment.param != "" {
			params[segment.param] = candidateSegments[i]
			continue
		}

		if segment.literal != candidateSegments[i] {
			return nil, false
		}
	}

	return params, true
}

// splitSegments splits value on separator, discarding the empty segments that
// duplicated or trailing separators produce.
func splitSegments(value, separator string) []string {
	pieces := strings.Split(value, separator)
	segments := pieces[:0]

	for _, piece := range pieces {
		if piece != "" {
			segments = append(segments, piece)
		}
	}

	return segments
}

func reverseSegments(segments []patternSegment) {
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
}

func reverseStrings(segments []string) {
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
}
