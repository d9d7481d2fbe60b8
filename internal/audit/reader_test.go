package audit

import (
	"context"
	"testing"
	"time"
)

func TestReaderSummarizesDay(t *testing.T) {
	store := newMemoryStore()
	writer := NewWriter(store, WriterConfig{BatchSize: 100}, nil)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	writer.QueryExecuted(ctx, execution("acme", "Employee", day.Add(time.Hour), true))
	writer.QueryExecuted(ctx, execution("acme", "Employee", day.Add(2*time.Hour), false))
	if err := writer.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	writer.QueryExecuted(ctx, execution("acme", "LeaveRequest", day.Add(3*time.Hour), true))
	writer.QueryExecuted(ctx, execution("acme", "Employee", day.AddDate(0, 0, 1), true))
	if err := writer.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	summaries, err := NewReader(store).Summarize(ctx, "acme", day)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %+v", summaries)
	}
	first := summaries[0]
	if first.Entity != "Employee" || first.Operation != "Select" || first.Queries != 2 || first.Failures != 1 || first.Rows != 3 {
		t.Fatalf("employee summary = %+v", first)
	}
	if summaries[1].Entity != "LeaveRequest" || summaries[1].Queries != 1 {
		t.Fatalf("leave summary = %+v", summaries[1])
	}

	empty, err := NewReader(store).Summarize(ctx, "globex", day)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no summaries, got %+v", empty)
	}
}
