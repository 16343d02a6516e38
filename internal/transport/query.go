package transport

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
)

const (
	DefaultPageSize = 15
	MaxPageSize     = 100
)

// Query is the parsed filter/sort/page part of an index request.
type Query struct {
	Filters map[string]string
	Sort    []SortField
	Page    Page
}

type SortField struct {
	Field string
	Desc  bool
}

type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// ParseQuery reads filter[x], sort and page[...] from values. Filters and sort fields
// outside the allow lists are rejected with a 400 that names the parameter.
func ParseQuery(values url.Values, filters, sorts []string) (Query, error) {
	q := Query{
		Filters: map[string]string{},
		Page:    Page{Number: 1, Size: DefaultPageSize},
	}

	for key, vals := range values {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		name := key[len("filter[") : len(key)-1]
		if !slices.Contains(filters, name) {
			return Query{}, internal.NewParameterError(key, "Filter %s is not allowed.", name)
		}
		if len(vals) > 0 {
			q.Filters[name] = vals[0]
		}
	}

	if raw := values.Get("sort"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			field := SortField{Field: strings.TrimPrefix(part, "-"), Desc: strings.HasPrefix(part, "-")}
			if !slices.Contains(sorts, field.Field) {
				return Query{}, internal.NewParameterError("sort", "Sort %s is not allowed.", field.Field)
			}
			q.Sort = append(q.Sort, field)
		}
	}

	if raw := values.Get("page[number]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Query{}, internal.NewParameterError("page[number]", "The page %s must be a number.", "number")
		}
		q.Page.Number = n
	}
	if raw := values.Get("page[size]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Query{}, internal.NewParameterError("page[size]", "The page %s must be a number.", "size")
		}
		q.Page.Size = min(n, MaxPageSize)
	}

	return q, nil
}

// Paginate builds the meta.page object and the navigation links of a page.
func Paginate(u *url.URL, page Page, total int64) (map[string]any, *Links) {
	last := int((total + int64(page.Size) - 1) / int64(page.Size))
	if last < 1 {
		last = 1
	}

	from, to := 0, 0
	if total > 0 {
		from = page.Offset() + 1
		to = min(page.Offset()+page.Size, int(total))
		if from > int(total) {
			from, to = 0, 0
		}
	}

	meta := map[string]any{
		"page": map[string]any{
			"currentPage": page.Number,
			"from":        from,
			"lastPage":    last,
			"perPage":     page.Size,
			"to":          to,
			"total":       total,
		},
	}

	links := &Links{
		Self:  pageURL(u, page.Number, page.Size),
		First: pageURL(u, 1, page.Size),
		Last:  pageURL(u, last, page.Size),
	}
	if page.Number > 1 {
		links.Prev = pageURL(u, page.Number-1, page.Size)
	}
	if page.Number < last {
		links.Next = pageURL(u, page.Number+1, page.Size)
	}
	return meta, links
}

func pageURL(u *url.URL, number, size int) string {
	q := u.Query()
	q.Set("page[number]", strconv.Itoa(number))
	q.Set("page[size]", strconv.Itoa(size))
	return fmt.Sprintf("%s?%s", u.Path, q.Encode())
}
