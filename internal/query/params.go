package query

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	TickerAll = "ALL"

	ContentTypeFilterAll         = "all"
	ContentTypeFilterInformative = "informative"
	ContentTypeFilterEmotional   = "emotional"
)

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidationError rejects bad filter input before anything is submitted to
// the query service.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Params are the user-supplied query filters.
type Params struct {
	Ticker           string
	ContentType      string
	StartDate        string
	EndDate          string
	IncludeSentinels bool
}

// Normalize validates the parameters and fills defaults. Ticker must be 1-5
// uppercase letters or the ALL wildcard.
func (p Params) Normalize() (Params, error) {
	if p.Ticker == "" {
		p.Ticker = TickerAll
	}
	p.Ticker = strings.ToUpper(strings.TrimSpace(p.Ticker))
	if p.Ticker != TickerAll && !tickerPattern.MatchString(p.Ticker) {
		return p, &ValidationError{Message: "Invalid ticker format. Use 1-5 uppercase letters."}
	}

	if p.ContentType == "" {
		p.ContentType = ContentTypeFilterAll
	}
	p.ContentType = strings.ToLower(strings.TrimSpace(p.ContentType))
	switch p.ContentType {
	case ContentTypeFilterAll, ContentTypeFilterInformative, ContentTypeFilterEmotional:
	default:
		return p, &ValidationError{Message: "Invalid content type. Use: all, informative, or emotional."}
	}

	for _, d := range []string{p.StartDate, p.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return p, &ValidationError{Message: fmt.Sprintf("Invalid date %q. Use YYYY-MM-DD.", d)}
		}
	}

	return p, nil
}
