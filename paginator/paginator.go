// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package paginator splits collections into numbered pages and
// produces the links to neighboring pages.
package paginator

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/diffeo/go-restkit/restdata"
	"github.com/diffeo/go-restkit/serializer"
)

// PageParam is the query parameter holding the page number.
const PageParam = "page"

// Page is one page of a collection.
type Page struct {
	// Count is the size of the whole collection.
	Count int

	// Number is the 1-based page number.
	Number int

	// NumPages is the total number of pages, at least 1.
	NumPages int

	// Size is the page size.
	Size int

	// Items holds this page's part of the collection.
	Items []interface{}

	// Next and Previous are links to the neighboring pages, or
	// empty if there is none.
	Next     string
	Previous string
}

// PageSize resolves the page size for a request.  The query
// parameter param may lower the size below limit, or, when limit is
// zero, set it freely; "0" turns pagination off.  Unparseable values
// are ignored.
func PageSize(query url.Values, param string, limit int) int {
	raw := strings.TrimSpace(query.Get(param))
	if raw == "" {
		return limit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return limit
	}
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// Paginate cuts a page out of items for a request with the given path
// and query.  size is the page size; if it is zero or negative, no
// pagination happens and Paginate returns nil.  A page number outside
// [1, NumPages] is a BadRequest error.
func Paginate(path string, query url.Values, items []interface{}, size int) (*Page, error) {
	if size <= 0 {
		return nil, nil
	}
	p := &Page{Count: len(items), Size: size, Number: 1}
	p.NumPages = (p.Count + size - 1) / size
	if p.NumPages == 0 {
		// an empty collection still has one (empty) page
		p.NumPages = 1
	}
	if raw := query.Get(PageParam); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 || n > p.NumPages {
			return nil, restdata.ErrBadRequest("Invalid page")
		}
		p.Number = n
	}
	start := (p.Number - 1) * size
	end := start + size
	if end > p.Count {
		end = p.Count
	}
	p.Items = items[start:end]

	if p.Number < p.NumPages {
		p.Next = link(path, query, p.Number+1)
	}
	if p.Number > 1 {
		p.Previous = link(path, query, p.Number-1)
	}
	return p, nil
}

// link builds the URL for another page, keeping every other query
// parameter.  Page 1 is addressed by leaving the page parameter out.
func link(path string, query url.Values, page int) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	if page == 1 {
		q.Del(PageParam)
	} else {
		q.Set(PageParam, strconv.Itoa(page))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// HasNext says whether there is a following page.
func (p *Page) HasNext() bool {
	return p.Next != ""
}

// HasPrevious says whether there is a preceding page.
func (p *Page) HasPrevious() bool {
	return p.Previous != ""
}

// LinkHeader returns the value for an HTTP Link header pointing at
// the neighboring pages, or an empty string.
func (p *Page) LinkHeader() string {
	var links []string
	if p.Next != "" {
		links = append(links, "<"+p.Next+`>; rel="next"`)
	}
	if p.Previous != "" {
		links = append(links, "<"+p.Previous+`>; rel="previous"`)
	}
	return strings.Join(links, ", ")
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ToSimple implements serializer.Simplifier.  The items are left for
// the serializer to convert with its active options.
func (p *Page) ToSimple(s *serializer.Serializer) (interface{}, error) {
	return map[string]interface{}{
		"count":     p.Count,
		"page":      p.Number,
		"num_pages": p.NumPages,
		"next":      nullable(p.Next),
		"previous":  nullable(p.Previous),
		"resources": p.Items,
	}, nil
}
