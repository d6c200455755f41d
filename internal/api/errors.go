package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/genbi/genbi/internal/bedrock"
	"github.com/genbi/genbi/internal/query"
	"github.com/genbi/genbi/internal/quicksight"
)

func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var submissionErr *query.SubmissionError
	var executionErr *query.ExecutionError
	var shapeErr *query.ResultShapeError
	var decodeErr *rowDecodeError
	switch {
	case errors.As(err, &submissionErr):
		writeError(ctx, w, http.StatusBadGateway, "QUERY_REJECTED", "query engine rejected the query", false, map[string]any{
			"code":    submissionErr.Code,
			"details": submissionErr.Err.Error(),
		})
	case errors.As(err, &executionErr):
		writeError(ctx, w, http.StatusBadGateway, "QUERY_FAILED", "query did not succeed", false, map[string]any{
			"execution_id": executionErr.ExecutionID,
			"state":        string(executionErr.State),
			"reason":       executionErr.Reason,
		})
	case errors.As(err, &shapeErr):
		writeError(ctx, w, http.StatusBadGateway, "RESULT_SHAPE_INVALID", shapeErr.Error(), false, map[string]any{
			"execution_id": shapeErr.ExecutionID,
		})
	case errors.As(err, &decodeErr):
		writeError(ctx, w, http.StatusBadGateway, "RESULT_DECODE_FAILED", decodeErr.Error(), false, map[string]any{
			"column": decodeErr.Column,
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "query did not finish in time", true, nil)
	case errors.Is(err, context.Canceled):
		writeError(ctx, w, http.StatusServiceUnavailable, "REQUEST_CANCELLED", "request was cancelled", true, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "QUERY_ERROR", "query execution failed", true, map[string]any{"details": err.Error()})
	}
}

func writeBedrockError(w http.ResponseWriter, r *http.Request, err error) {
	var callErr *bedrock.CallError
	if errors.As(err, &callErr) {
		writeError(r.Context(), w, http.StatusBadGateway, "BEDROCK_ERROR", callErr.Error(), false, map[string]any{
			"operation": callErr.Operation,
		})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(r.Context(), w, http.StatusGatewayTimeout, "BEDROCK_TIMEOUT", "knowledge base did not answer in time", true, nil)
		return
	}
	writeError(r.Context(), w, http.StatusBadGateway, "BEDROCK_ERROR", err.Error(), false, nil)
}

func writeEmbedError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, quicksight.ErrInvalidRequest) {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EMBED_REQUEST", err.Error(), false, nil)
		return
	}
	var embedErr *quicksight.EmbedError
	if errors.As(err, &embedErr) {
		writeError(r.Context(), w, http.StatusInternalServerError, "EMBED_URL_FAILED", embedErr.Message, false, nil)
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "EMBED_URL_FAILED", err.Error(), false, nil)
}

func writeNotConfigured(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(r.Context(), w, http.StatusNotImplemented, code, message, false, nil)
}
