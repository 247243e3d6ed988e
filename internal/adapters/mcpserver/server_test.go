package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type fakeQueryService struct {
	answer string
	err    error
}

func (f fakeQueryService) RunQuery(context.Context, string) (string, error) {
	return f.answer, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRequest(question string) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = map[string]any{"question": question}
	return req
}

func TestHandleAskTaxCaseQuestionReturnsAnswer(t *testing.T) {
	handler := handleAskTaxCaseQuestion(fakeQueryService{answer: "제조업 매출누락 사례입니다 [doc-1:12:40-52]"}, discardLogger())

	result, err := handler(context.Background(), newRequest("제조업 매출누락 사례 알려줘"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error result: %+v", result)
	}
}

func TestHandleAskTaxCaseQuestionReturnsErrorResultOnFailure(t *testing.T) {
	handler := handleAskTaxCaseQuestion(fakeQueryService{err: errors.New("backend down")}, discardLogger())

	result, err := handler(context.Background(), newRequest("가공거래 사례"))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error result")
	}
}

func TestHandleAskTaxCaseQuestionRequiresQuestionArgument(t *testing.T) {
	handler := handleAskTaxCaseQuestion(fakeQueryService{answer: "unused"}, discardLogger())

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = map[string]any{}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected error result for missing question")
	}
}
