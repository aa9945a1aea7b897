package search

import (
	"strings"

	"github.com/young1lin/flux/internal/models"
)

// Depth trades latency against result quality
type Depth string

const (
	DepthUltraFast Depth = "ultra-fast"
	DepthFast      Depth = "fast"
	DepthBasic     Depth = "basic"
	DepthAdvanced  Depth = "advanced"
)

// Topic selects the provider's search vertical
type Topic string

const (
	TopicGeneral Topic = "general"
	TopicNews    Topic = "news"
	TopicFinance Topic = "finance"
)

// TimeRange restricts results to a recent window
type TimeRange string

const (
	TimeRangeDay   TimeRange = "day"
	TimeRangeWeek  TimeRange = "week"
	TimeRangeMonth TimeRange = "month"
	TimeRangeYear  TimeRange = "year"
)

// MaxResultsLimit is the most results a single search may ask for
const MaxResultsLimit = 20

// Options tunes one search call. The zero value is a general,
// basic-depth search for MaxResultsLimit results.
type Options struct {
	MaxResults        int
	Depth             Depth
	Topic             Topic
	TimeRange         TimeRange
	Days              int
	StartDate         string // YYYY-MM-DD
	EndDate           string // YYYY-MM-DD
	IncludeDomains    []string
	ExcludeDomains    []string
	IncludeRawContent bool
	IncludeFavicon    bool
}

// ParseTopic accepts the topics exposed over HTTP
func ParseTopic(s string) (Topic, bool) {
	switch Topic(strings.ToLower(strings.TrimSpace(s))) {
	case TopicGeneral:
		return TopicGeneral, true
	case TopicNews:
		return TopicNews, true
	case TopicFinance:
		return TopicFinance, true
	}
	return "", false
}

// TimeRangeForDays maps a look-back in days to the coarsest range covering it
func TimeRangeForDays(days int) TimeRange {
	switch {
	case days < 1:
		return ""
	case days <= 1:
		return TimeRangeDay
	case days <= 7:
		return TimeRangeWeek
	case days <= 31:
		return TimeRangeMonth
	default:
		return TimeRangeYear
	}
}

// ClampResults bounds n to 1..MaxResultsLimit; n <= 0 means the maximum
func ClampResults(n int) int {
	if n <= 0 || n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// ValidateQuery trims q and rejects empty queries
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", models.ErrInvalidQuery
	}
	return q, nil
}

func (o Options) normalized(defaultDepth Depth) Options {
	o.MaxResults = ClampResults(o.MaxResults)
	if o.Depth == "" {
		o.Depth = defaultDepth
	}
	if o.Depth == "" {
		o.Depth = DepthBasic
	}
	if o.Topic == "" {
		o.Topic = TopicGeneral
	}
	if o.TimeRange == "" {
		o.TimeRange = TimeRangeForDays(o.Days)
	}
	return o
}
