// Package query renders user filters into analytical SQL, drives the
// asynchronous query service to completion, and reshapes the row set into the
// trend/posts views.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/altsignal/tickersent/internal/classify"
	"github.com/altsignal/tickersent/internal/models"
)

// ErrQueryTimeout means the poll deadline expired. The underlying job is
// abandoned, not cancelled.
var ErrQueryTimeout = errors.New("query timed out")

// ExecutionError carries the engine's failure reason verbatim.
type ExecutionError struct {
	Reason string
}

func (e *ExecutionError) Error() string { return "query failed: " + e.Reason }

// JobState tracks the async job lifecycle.
type JobState string

const (
	JobSubmitted JobState = "SUBMITTED"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
	JobTimedOut  JobState = "TIMED_OUT"
)

type athenaAPI interface {
	StartQueryExecution(ctx context.Context, in *athena.StartQueryExecutionInput, opts ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, in *athena.GetQueryExecutionInput, opts ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, in *athena.GetQueryResultsInput, opts ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

type Engine struct {
	api            athenaAPI
	database       string
	table          string
	outputLocation string
	pollInterval   time.Duration
	timeout        time.Duration
}

func NewEngine(api athenaAPI, database, table, outputLocation string, pollInterval, timeout time.Duration) *Engine {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Engine{
		api:            api,
		database:       database,
		table:          table,
		outputLocation: outputLocation,
		pollInterval:   pollInterval,
		timeout:        timeout,
	}
}

// Query validates the filters, runs the trend and posts queries, and shapes
// the response. An empty row set is a valid outcome and is flagged in the
// metadata, not returned as an error.
func (e *Engine) Query(ctx context.Context, params Params) (*models.QueryResponse, error) {
	params, err := params.Normalize()
	if err != nil {
		return nil, err
	}

	// One deadline covers both executions so the caller never waits longer
	// than the configured timeout in total.
	deadline := time.Now().Add(e.timeout)

	trendTable, err := e.execute(ctx, renderTrendQuery(params, e.table), deadline)
	if err != nil {
		return nil, err
	}

	postsTable, err := e.execute(ctx, renderPostsQuery(params, e.table), deadline)
	if err != nil {
		return nil, err
	}

	resp := &models.QueryResponse{
		TrendData: reshapeTrendRows(trendTable),
		PostsData: reshapePostRows(postsTable),
		Metadata: models.QueryMetadata{
			Ticker:      params.Ticker,
			ContentType: params.ContentType,
			Timestamp:   time.Now().Unix(),
		},
	}
	if len(resp.TrendData) == 0 && len(resp.PostsData) == 0 {
		resp.Metadata.NoData = true
	}

	return resp, nil
}

type resultTable struct {
	header []string
	rows   [][]string
}

func (e *Engine) execute(ctx context.Context, sql string, deadline time.Time) (*resultTable, error) {
	start, err := e.api.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(e.database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(e.outputLocation),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[QueryEngine] Failed to submit query: %w", err)
	}

	jobID := aws.ToString(start.QueryExecutionId)
	slog.Info("[QueryEngine] Submitted query", slog.String("job_id", jobID))

	state, reason, err := e.waitForCompletion(ctx, jobID, deadline)
	if err != nil {
		return nil, err
	}
	switch state {
	case JobTimedOut:
		return nil, ErrQueryTimeout
	case JobFailed:
		return nil, &ExecutionError{Reason: reason}
	}

	return e.fetchResults(ctx, jobID)
}

// waitForCompletion polls the job at a fixed interval under a hard deadline.
// Exceeding the deadline stops the caller-visible wait; the job itself keeps
// running and is left behind.
func (e *Engine) waitForCompletion(ctx context.Context, jobID string, deadline time.Time) (JobState, string, error) {
	state := JobSubmitted

	for {
		out, err := e.api.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(jobID),
		})
		if err != nil {
			return state, "", fmt.Errorf("[QueryEngine] Failed to poll job %s: %w", jobID, err)
		}

		status := out.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return JobSucceeded, "", nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(status.StateChangeReason)
			if reason == "" {
				reason = "unknown error"
			}
			slog.Error("[QueryEngine] Query failed",
				slog.String("job_id", jobID),
				slog.String("reason", reason))
			return JobFailed, reason, nil
		default:
			state = JobRunning
		}

		if time.Now().After(deadline) {
			slog.Warn("[QueryEngine] Query exceeded deadline, abandoning",
				slog.String("job_id", jobID),
				slog.Duration("timeout", e.timeout))
			return JobTimedOut, "", nil
		}

		select {
		case <-ctx.Done():
			return state, "", ctx.Err()
		case <-time.After(e.pollInterval):
		}
	}
}

func (e *Engine) fetchResults(ctx context.Context, jobID string) (*resultTable, error) {
	table := &resultTable{}
	var nextToken *string
	first := true

	for {
		out, err := e.api.GetQueryResults(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(jobID),
			NextToken:        nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("[QueryEngine] Failed to fetch results for %s: %w", jobID, err)
		}

		if out.ResultSet != nil {
			for _, row := range out.ResultSet.Rows {
				values := make([]string, len(row.Data))
				for i, datum := range row.Data {
					values[i] = aws.ToString(datum.VarCharValue)
				}
				if first {
					table.header = values
					first = false
					continue
				}
				table.rows = append(table.rows, values)
			}
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return table, nil
}

func reshapeTrendRows(table *resultTable) []models.TrendRow {
	rows := make([]models.TrendRow, 0, len(table.rows))
	for _, values := range table.rows {
		cols := table.columns(values)
		rows = append(rows, models.TrendRow{
			Subreddit:     cols["subreddit"],
			PostDate:      cols["post_date"],
			SentimentType: cols["sentiment_type"],
			ContentType:   cols["content_type"],
			PostCount:     parseInt(cols["post_count"]),
			AvgPositive:   parseFloat(cols["avg_positive_score"]),
			AvgNegative:   parseFloat(cols["avg_negative_score"]),
			AvgNeutral:    parseFloat(cols["avg_neutral_score"]),
			AvgMixed:      parseFloat(cols["avg_mixed_score"]),
		})
	}
	return rows
}

func reshapePostRows(table *resultTable) []models.PostRow {
	rows := make([]models.PostRow, 0, len(table.rows))
	for _, values := range table.rows {
		cols := table.columns(values)
		row := models.PostRow{
			DisplayText:   cols["display_text"],
			Subreddit:     cols["subreddit"],
			SentimentType: cols["sentiment_type"],
			ContentType:   cols["content_type"],
			URL:           cols["url"],
			Kind:          cols["type"],
		}
		row.CombinedClassification = classify.Combined(
			&models.SentimentResult{Label: row.SentimentType},
			&models.ContentTypeResult{Label: row.ContentType},
		)
		rows = append(rows, row)
	}
	return rows
}

func (t *resultTable) columns(values []string) map[string]string {
	cols := make(map[string]string, len(t.header))
	for i, name := range t.header {
		if i < len(values) {
			cols[name] = values[i]
		}
	}
	return cols
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
