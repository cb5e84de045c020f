package dynamodb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
)

type fakeDynamo struct {
	batches     []*dynamodb.BatchWriteItemInput
	unprocessed int
	queries     []*dynamodb.QueryInput
	output      *dynamodb.QueryOutput
	queryErr    error
}

func (f *fakeDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, params)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.output == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.output, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batches = append(f.batches, params)
	if f.unprocessed > 0 {
		f.unprocessed--
		return &dynamodb.BatchWriteItemOutput{UnprocessedItems: params.RequestItems}, nil
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func newTestRepository(client *fakeDynamo) *ReportManifestRepository {
	repo := newReportManifestRepository(client, Config{TableName: "reports", StrongReads: true})
	repo.retryDelay = time.Millisecond
	return repo
}

func manifest(node, kind, key string, at time.Time) port.ReportManifest {
	return port.ReportManifest{
		RunID:       "run-1",
		Host:        "vrops.local",
		Node:        node,
		Kind:        kind,
		Format:      "csv",
		S3Key:       key,
		URL:         "https://example.com/" + key,
		ContentType: "text/csv",
		SizeBytes:   42,
		CollectedAt: at,
		ExpiresAt:   at.Add(24 * time.Hour),
	}
}

func TestPutBatch_SplitsIntoChunksOf25(t *testing.T) {
	client := &fakeDynamo{}
	repo := newTestRepository(client)

	at := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	records := make([]port.ReportManifest, 0, 30)
	for i := 0; i < 30; i++ {
		records = append(records, manifest("node-1", port.ReportKindMetrics, "k/"+string(rune('a'+i)), at))
	}

	if err := repo.PutBatch(context.Background(), records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.batches) != 2 {
		t.Fatalf("expected 2 batch writes, got %d", len(client.batches))
	}
	if got := len(client.batches[0].RequestItems["reports"]); got != 25 {
		t.Fatalf("expected 25 items in first batch, got %d", got)
	}
	if got := len(client.batches[1].RequestItems["reports"]); got != 5 {
		t.Fatalf("expected 5 items in second batch, got %d", got)
	}

	item := client.batches[0].RequestItems["reports"][0].PutRequest.Item
	pk := item[attrPK].(*types.AttributeValueMemberS).Value
	if pk != "NODE#node-1" {
		t.Fatalf("unexpected PK %s", pk)
	}
	gsi := item[attrGSI1PK].(*types.AttributeValueMemberS).Value
	if gsi != "NODE#node-1#KIND#metrics" {
		t.Fatalf("unexpected GSI1PK %s", gsi)
	}
	ttl := item[attrExpiresAt].(*types.AttributeValueMemberN).Value
	if ttl != "1770552000" {
		t.Fatalf("expected TTL in epoch seconds, got %s", ttl)
	}
}

func TestPutBatch_RetriesUnprocessedItems(t *testing.T) {
	client := &fakeDynamo{unprocessed: 2}
	repo := newTestRepository(client)

	at := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	err := repo.PutBatch(context.Background(), []port.ReportManifest{manifest("node-1", "names", "a", at)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.batches) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(client.batches))
	}

	client = &fakeDynamo{unprocessed: maxBatchRetries}
	repo = newTestRepository(client)
	err = repo.PutBatch(context.Background(), []port.ReportManifest{manifest("node-1", "names", "a", at)})
	if err == nil || !strings.Contains(err.Error(), "unprocessed") {
		t.Fatalf("expected unprocessed items error, got %v", err)
	}
}

func TestPutBatch_RejectsInvalidRecords(t *testing.T) {
	at := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		record  port.ReportManifest
		wantErr string
	}{
		{"bad node", manifest("node/1", "metrics", "a", at), "invalid node"},
		{"no kind", manifest("node-1", "", "a", at), "kind is required"},
		{"no key", manifest("node-1", "metrics", " ", at), "s3_key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeDynamo{}
			err := newTestRepository(client).PutBatch(context.Background(), []port.ReportManifest{tt.record})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
			if len(client.batches) != 0 {
				t.Fatal("expected no writes")
			}
		})
	}
}

func TestListByNode_QueriesByKindIndexAndRoundTripsItems(t *testing.T) {
	at := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	repo := newTestRepository(&fakeDynamo{})
	item, err := repo.toItem(manifest("node-1", port.ReportKindMetrics, "selfmon/h/node-1_metrics.csv", at))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := &fakeDynamo{output: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{item},
		LastEvaluatedKey: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: "NODE#node-1"},
			attrSK: &types.AttributeValueMemberS{Value: "TS#1"},
		},
	}}
	repo = newTestRepository(client)

	page, err := repo.ListByNode(context.Background(), port.ReportListQuery{
		Node:  "node-1",
		Kind:  port.ReportKindMetrics,
		Limit: 500,
		From:  at.Add(-time.Hour),
		To:    at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query := client.queries[0]
	if query.IndexName == nil || *query.IndexName != reportManifestGSI1 {
		t.Fatalf("expected GSI1 query, got %v", query.IndexName)
	}
	if query.ConsistentRead != nil {
		t.Fatal("expected consistent read to be unset on GSI query")
	}
	if *query.Limit != maxListLimit {
		t.Fatalf("expected limit clamp to %d, got %d", maxListLimit, *query.Limit)
	}
	if !strings.Contains(*query.KeyConditionExpression, "BETWEEN") {
		t.Fatalf("expected range condition, got %s", *query.KeyConditionExpression)
	}

	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
	got := page.Items[0]
	if got.RunID != "run-1" || got.Host != "vrops.local" || got.Format != "csv" || got.SizeBytes != 42 {
		t.Fatalf("unexpected item: %+v", got)
	}
	if !got.CollectedAt.Equal(at) {
		t.Fatalf("expected collected_at %s, got %s", at, got.CollectedAt)
	}
	if page.NextCursor == "" {
		t.Fatal("expected next cursor")
	}

	if _, err := repo.ListByNode(context.Background(), port.ReportListQuery{
		Node:   "node-1",
		Cursor: page.NextCursor,
	}); err == nil || !strings.Contains(err.Error(), "cursor does not match") {
		t.Fatalf("expected cursor mismatch error, got %v", err)
	}

	_, err = repo.ListByNode(context.Background(), port.ReportListQuery{
		Node:   "node-1",
		Kind:   port.ReportKindMetrics,
		Cursor: page.NextCursor,
		From:   at.Add(-time.Hour),
		To:     at,
	})
	if err != nil {
		t.Fatalf("expected cursor to be accepted, got %v", err)
	}
	if client.queries[len(client.queries)-1].ExclusiveStartKey == nil {
		t.Fatal("expected exclusive start key")
	}
}

func TestListByNode_Errors(t *testing.T) {
	client := &fakeDynamo{queryErr: errors.New("throttled")}
	repo := newTestRepository(client)

	if _, err := repo.ListByNode(context.Background(), port.ReportListQuery{Node: ""}); err == nil {
		t.Fatal("expected invalid node error")
	}

	now := time.Now()
	if _, err := repo.ListByNode(context.Background(), port.ReportListQuery{
		Node: "node-1", From: now, To: now.Add(-time.Minute),
	}); err == nil {
		t.Fatal("expected range error")
	}

	if _, err := repo.ListByNode(context.Background(), port.ReportListQuery{Node: "node-1", Cursor: "!!"}); err == nil {
		t.Fatal("expected invalid cursor error")
	}

	_, err := repo.ListByNode(context.Background(), port.ReportListQuery{Node: "node-1"})
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
	if !*client.queries[0].ConsistentRead {
		t.Fatal("expected strong reads on base table")
	}
}
