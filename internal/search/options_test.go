package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeRangeForDays(t *testing.T) {
	tests := []struct {
		days int
		want TimeRange
	}{
		{0, ""},
		{1, TimeRangeDay},
		{2, TimeRangeWeek},
		{7, TimeRangeWeek},
		{8, TimeRangeMonth},
		{31, TimeRangeMonth},
		{32, TimeRangeYear},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeRangeForDays(tt.days), "days=%d", tt.days)
	}
}

func TestOptionsNormalized(t *testing.T) {
	o := Options{Days: 3, TimeRange: TimeRangeYear}.normalized("")
	assert.Equal(t, TimeRangeYear, o.TimeRange, "explicit range wins")
	assert.Equal(t, DepthBasic, o.Depth)
	assert.Equal(t, TopicGeneral, o.Topic)
	assert.Equal(t, MaxResultsLimit, o.MaxResults)

	o = Options{MaxResults: 3}.normalized(DepthAdvanced)
	assert.Equal(t, 3, o.MaxResults)
	assert.Equal(t, DepthAdvanced, o.Depth)
}

func TestParseTopic(t *testing.T) {
	topic, ok := ParseTopic(" News ")
	assert.True(t, ok)
	assert.Equal(t, TopicNews, topic)

	_, ok = ParseTopic("sports")
	assert.False(t, ok)
}
