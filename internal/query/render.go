package query

import (
	"fmt"
	"strings"
)

const postsLimit = 20

// renderTrendQuery builds the grouped aggregation. Null-sentiment rows are
// always excluded. Sentinel content types (DISABLED, UNKNOWN) are excluded
// only from content-type-specific aggregations; a sentiment-only aggregation
// keeps them, since their sentiment is still real.
func renderTrendQuery(p Params, table string) string {
	byContentType := p.ContentType != ContentTypeFilterAll || p.IncludeSentinels

	var sb strings.Builder
	sb.WriteString("SELECT subreddit, date(from_unixtime(created_utc)) AS post_date, ")
	sb.WriteString("sentiment.label AS sentiment_type, ")
	if byContentType {
		sb.WriteString("content_type.label AS content_type, ")
	}
	sb.WriteString("COUNT(*) AS post_count, ")
	sb.WriteString("AVG(sentiment.scores.positive) AS avg_positive_score, ")
	sb.WriteString("AVG(sentiment.scores.negative) AS avg_negative_score, ")
	sb.WriteString("AVG(sentiment.scores.neutral) AS avg_neutral_score, ")
	sb.WriteString("AVG(sentiment.scores.mixed) AS avg_mixed_score ")
	sb.WriteString("FROM " + table + " WHERE " + strings.Join(whereConditions(p, byContentType), " AND "))
	if byContentType {
		sb.WriteString(" GROUP BY 1, 2, 3, 4 ORDER BY 2 DESC, 1, 5 DESC")
	} else {
		sb.WriteString(" GROUP BY 1, 2, 3 ORDER BY 2 DESC, 1, 4 DESC")
	}
	return sb.String()
}

func renderPostsQuery(p Params, table string) string {
	var sb strings.Builder
	sb.WriteString("SELECT CASE WHEN type = 'post' THEN title ELSE body END AS display_text, ")
	sb.WriteString("subreddit, sentiment.label AS sentiment_type, content_type.label AS content_type, url, type ")
	sb.WriteString("FROM " + table + " WHERE " + strings.Join(whereConditions(p, p.ContentType != ContentTypeFilterAll), " AND "))
	sb.WriteString(fmt.Sprintf(" ORDER BY created_utc DESC LIMIT %d", postsLimit))
	return sb.String()
}

// whereConditions interpolates only values that already passed Normalize:
// the ticker matches ^[A-Z]{1,5}$ and dates parsed as YYYY-MM-DD.
func whereConditions(p Params, contentTypeSpecific bool) []string {
	conditions := []string{"sentiment IS NOT NULL"}

	if p.Ticker != TickerAll {
		conditions = append(conditions, fmt.Sprintf(
			"(UPPER(title) LIKE '%%%s%%' OR UPPER(body) LIKE '%%%s%%')", p.Ticker, p.Ticker))
	}

	switch p.ContentType {
	case ContentTypeFilterInformative:
		conditions = append(conditions, "content_type.label = 'INFORMATIVE'")
	case ContentTypeFilterEmotional:
		conditions = append(conditions, "content_type.label = 'EMOTIONAL'")
	default:
		if contentTypeSpecific && !p.IncludeSentinels {
			conditions = append(conditions, "content_type.label NOT IN ('DISABLED', 'UNKNOWN')")
		}
	}

	if p.StartDate != "" {
		conditions = append(conditions, fmt.Sprintf("date(from_unixtime(created_utc)) >= DATE '%s'", p.StartDate))
	}
	if p.EndDate != "" {
		conditions = append(conditions, fmt.Sprintf("date(from_unixtime(created_utc)) <= DATE '%s'", p.EndDate))
	}

	return conditions
}
