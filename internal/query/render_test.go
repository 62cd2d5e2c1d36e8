package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		in      Params
		want    Params
		wantErr bool
	}{
		{
			name: "defaults fill in",
			in:   Params{},
			want: Params{Ticker: "ALL", ContentType: "all"},
		},
		{
			name: "valid ticker uppercased",
			in:   Params{Ticker: "aapl", ContentType: "Informative"},
			want: Params{Ticker: "AAPL", ContentType: "informative"},
		},
		{
			name:    "ticker with digit rejected",
			in:      Params{Ticker: "AAPL1"},
			wantErr: true,
		},
		{
			name:    "ticker too long rejected",
			in:      Params{Ticker: "TOOLONG"},
			wantErr: true,
		},
		{
			name:    "bad content type rejected",
			in:      Params{ContentType: "spam"},
			wantErr: true,
		},
		{
			name:    "bad date rejected",
			in:      Params{StartDate: "08/31/2026"},
			wantErr: true,
		},
		{
			name: "valid dates pass",
			in:   Params{StartDate: "2026-08-01", EndDate: "2026-08-31"},
			want: Params{Ticker: "ALL", ContentType: "all", StartDate: "2026-08-01", EndDate: "2026-08-31"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.Normalize()
			if tc.wantErr {
				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func normalized(t *testing.T, p Params) Params {
	t.Helper()
	out, err := p.Normalize()
	require.NoError(t, err)
	return out
}

func TestRenderTrendQuerySentimentOnly(t *testing.T) {
	sql := renderTrendQuery(normalized(t, Params{}), "reddit_sentiment")

	assert.Contains(t, sql, "sentiment IS NOT NULL")
	assert.Contains(t, sql, "GROUP BY 1, 2, 3 ")
	assert.NotContains(t, sql, "content_type.label AS content_type")
	assert.NotContains(t, sql, "NOT IN ('DISABLED', 'UNKNOWN')",
		"sentiment-only aggregation keeps sentinel content types")
	assert.NotContains(t, sql, "LIKE")
}

func TestRenderTrendQueryContentTypeSpecific(t *testing.T) {
	sql := renderTrendQuery(normalized(t, Params{Ticker: "AAPL", ContentType: "informative"}), "reddit_sentiment")

	assert.Contains(t, sql, "content_type.label AS content_type")
	assert.Contains(t, sql, "content_type.label = 'INFORMATIVE'")
	assert.Contains(t, sql, "GROUP BY 1, 2, 3, 4")
	assert.Contains(t, sql, "UPPER(title) LIKE '%AAPL%'")
}

func TestRenderTrendQueryIncludeSentinels(t *testing.T) {
	sql := renderTrendQuery(normalized(t, Params{IncludeSentinels: true}), "reddit_sentiment")

	assert.Contains(t, sql, "content_type.label AS content_type")
	assert.NotContains(t, sql, "NOT IN ('DISABLED', 'UNKNOWN')")
}

func TestRenderPostsQuery(t *testing.T) {
	sql := renderPostsQuery(normalized(t, Params{Ticker: "TSLA", ContentType: "emotional", StartDate: "2026-08-01"}), "reddit_sentiment")

	assert.Contains(t, sql, "CASE WHEN type = 'post' THEN title ELSE body END AS display_text")
	assert.Contains(t, sql, "content_type.label = 'EMOTIONAL'")
	assert.Contains(t, sql, "date(from_unixtime(created_utc)) >= DATE '2026-08-01'")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY created_utc DESC LIMIT 20"))
}
