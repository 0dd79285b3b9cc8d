// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package media

import (
	"mime"
	"strconv"
	"strings"

	"github.com/diffeo/go-restkit/restdata"
)

// mediaRange is one parsed entry of an Accept: header.
type mediaRange struct {
	Type    string
	Subtype string
	Q       float64
}

// parseAccept splits an Accept: header into media ranges.  Malformed
// entries, including ones with an unparseable or out-of-range q, are
// dropped.
func parseAccept(accept string) []mediaRange {
	var ranges []mediaRange
	for _, part := range strings.Split(accept, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(part)
		if err != nil {
			continue
		}
		q := 1.0
		if qStr, haveQ := params["q"]; haveQ {
			q, err = strconv.ParseFloat(qStr, 64)
			if err != nil || q < 0.0 || q > 1.0 {
				continue
			}
		}
		slash := strings.IndexByte(mediaType, '/')
		if slash < 0 {
			if mediaType != "*" {
				continue
			}
			mediaType = "*/*"
			slash = 1
		}
		ranges = append(ranges, mediaRange{
			Type:    mediaType[:slash],
			Subtype: mediaType[slash+1:],
			Q:       q,
		})
	}
	return ranges
}

// quality returns the q value the most specific matching range gives
// mediaType, and how specific that range was (0 for */*, 1 for
// type/*, 2 for an exact match), or -1 if no range matches.
func quality(mediaType string, ranges []mediaRange) (float64, int) {
	slash := strings.IndexByte(mediaType, '/')
	if slash < 0 {
		return 0, -1
	}
	typ, subtype := mediaType[:slash], mediaType[slash+1:]
	bestQ, bestFit := 0.0, -1
	for _, r := range ranges {
		fit := -1
		switch {
		case r.Type == typ && r.Subtype == subtype:
			fit = 2
		case r.Type == typ && r.Subtype == "*":
			fit = 1
		case r.Type == "*" && r.Subtype == "*":
			fit = 0
		}
		if fit > bestFit {
			bestQ, bestFit = r.Q, fit
		}
	}
	return bestQ, bestFit
}

// BestMatch returns the index of the candidate media type the Accept:
// header prefers, or -1 if it accepts none of them.  Higher q wins;
// at equal q the more specific match wins; remaining ties go to the
// earlier candidate.
func BestMatch(accept string, candidates []string) int {
	ranges := parseAccept(accept)
	best, bestQ, bestFit := -1, 0.0, -1
	for i, candidate := range candidates {
		q, fit := quality(candidate, ranges)
		if fit < 0 || q <= 0 {
			continue
		}
		if q > bestQ || (q == bestQ && fit > bestFit) {
			best, bestQ, bestFit = i, q, fit
		}
	}
	return best
}

// SelectEmitter picks the emitter for an Accept: header.  An absent
// header or "*/*" selects the first (default) emitter.  When nothing
// matches the default is used, unless strict is set, in which case
// the result is a NotAcceptable error.
func SelectEmitter(accept string, emitters []Emitter, strict bool) (Emitter, error) {
	if len(emitters) == 0 {
		return nil, restdata.Errorf(restdata.Internal, "no emitters configured")
	}
	accept = strings.TrimSpace(accept)
	if accept == "" || accept == "*/*" {
		return emitters[0], nil
	}
	candidates := make([]string, len(emitters))
	for i, e := range emitters {
		candidates[i] = e.MediaType()
	}
	if i := BestMatch(accept, candidates); i >= 0 {
		return emitters[i], nil
	}
	if strict {
		return nil, restdata.Errorf(restdata.NotAcceptable,
			"No acceptable representation for response")
	}
	return emitters[0], nil
}

// SelectParser picks the parser for a Content-Type: header by exact
// media type, ignoring parameters, falling back to the first
// (default) parser.
func SelectParser(contentType string, parsers []Parser) Parser {
	p, _ := selectParser(contentType, parsers, false)
	return p
}

// StrictParser is SelectParser, except that a Content-Type: naming
// an unsupported media type is an UnsupportedMediaType error.  An
// empty header still selects the default parser.
func StrictParser(contentType string, parsers []Parser) (Parser, error) {
	return selectParser(contentType, parsers, true)
}

func selectParser(contentType string, parsers []Parser, strict bool) (Parser, error) {
	if len(parsers) == 0 {
		return nil, nil
	}
	if semi := strings.IndexByte(contentType, ';'); semi >= 0 {
		contentType = contentType[:semi]
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, p := range parsers {
		if p.MediaType() == contentType {
			return p, nil
		}
	}
	if strict && contentType != "" {
		return nil, restdata.Errorf(restdata.UnsupportedMediaType,
			"Unsupported media type '%s'.", contentType)
	}
	return parsers[0], nil
}

// MediaTypes lists emitter media types in order.
func MediaTypes(emitters []Emitter) []string {
	result := make([]string, len(emitters))
	for i, e := range emitters {
		result[i] = e.MediaType()
	}
	return result
}

// ParserTypes lists parser media types in order.
func ParserTypes(parsers []Parser) []string {
	result := make([]string, len(parsers))
	for i, p := range parsers {
		result[i] = p.MediaType()
	}
	return result
}
