// Package athena adapts Amazon Athena to the query.Engine boundary.
package athena

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsathena "github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/genbi/genbi/internal/query"
)

// MaxResultsPerPage is the largest page GetQueryResults accepts.
const MaxResultsPerPage = 1000

type API interface {
	StartQueryExecution(ctx context.Context, params *awsathena.StartQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *awsathena.GetQueryExecutionInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *awsathena.GetQueryResultsInput, optFns ...func(*awsathena.Options)) (*awsathena.GetQueryResultsOutput, error)
}

type Engine struct {
	api API
}

func New(cfg aws.Config) *Engine {
	return NewWithAPI(awsathena.NewFromConfig(cfg))
}

func NewWithAPI(api API) *Engine {
	return &Engine{api: api}
}

func (e *Engine) Submit(ctx context.Context, request query.Request) (string, error) {
	input := &awsathena.StartQueryExecutionInput{
		QueryString: aws.String(request.SQL),
	}
	if request.Database != "" {
		input.QueryExecutionContext = &types.QueryExecutionContext{Database: aws.String(request.Database)}
	}
	if request.OutputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{OutputLocation: aws.String(request.OutputLocation)}
	}
	if request.Workgroup != "" {
		input.WorkGroup = aws.String(request.Workgroup)
	}

	out, err := e.api.StartQueryExecution(ctx, input)
	if err != nil {
		return "", err
	}
	id := aws.ToString(out.QueryExecutionId)
	if id == "" {
		return "", errors.New("athena returned no query execution id")
	}
	return id, nil
}

func (e *Engine) Status(ctx context.Context, executionID string) (query.Status, error) {
	out, err := e.api.GetQueryExecution(ctx, &awsathena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(executionID),
	})
	if err != nil {
		return query.Status{}, err
	}
	execution := out.QueryExecution
	if execution == nil || execution.Status == nil {
		return query.Status{}, fmt.Errorf("athena returned no status for query %s", executionID)
	}

	status := query.Status{
		State:  query.State(execution.Status.State),
		Reason: aws.ToString(execution.Status.StateChangeReason),
	}
	if execution.ResultConfiguration != nil {
		status.OutputLocation = aws.ToString(execution.ResultConfiguration.OutputLocation)
	}
	return status, nil
}

// ResultsPage fetches only the first page. Athena prepends a row repeating
// the column labels, which callers strip via query.HeaderRows.
func (e *Engine) ResultsPage(ctx context.Context, executionID string, maxRows int) (query.Page, error) {
	if maxRows <= 0 || maxRows > MaxResultsPerPage {
		return query.Page{}, fmt.Errorf("max rows must be between 1 and %d, got %d", MaxResultsPerPage, maxRows)
	}
	out, err := e.api.GetQueryResults(ctx, &awsathena.GetQueryResultsInput{
		QueryExecutionId: aws.String(executionID),
		MaxResults:       aws.Int32(int32(maxRows)),
	})
	if err != nil {
		return query.Page{}, err
	}
	return pageFromResultSet(out.ResultSet), nil
}

func pageFromResultSet(resultSet *types.ResultSet) query.Page {
	if resultSet == nil {
		return query.Page{}
	}
	var page query.Page
	if resultSet.ResultSetMetadata != nil {
		page.Columns = make([]string, 0, len(resultSet.ResultSetMetadata.ColumnInfo))
		for _, column := range resultSet.ResultSetMetadata.ColumnInfo {
			label := aws.ToString(column.Label)
			if label == "" {
				label = aws.ToString(column.Name)
			}
			page.Columns = append(page.Columns, label)
		}
	}
	page.Rows = make([][]*string, 0, len(resultSet.Rows))
	for _, row := range resultSet.Rows {
		values := make([]*string, 0, len(row.Data))
		for _, datum := range row.Data {
			values = append(values, datum.VarCharValue)
		}
		page.Rows = append(page.Rows, values)
	}
	return page
}
