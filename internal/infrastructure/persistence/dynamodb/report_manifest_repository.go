package dynamodb

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
)

const (
	defaultListLimit  = 24
	maxListLimit      = 100
	maxBatchWriteSize = 25
	maxBatchRetries   = 5

	reportManifestGSI1 = "GSI1"

	attrPK          = "PK"
	attrSK          = "SK"
	attrGSI1PK      = "GSI1PK"
	attrGSI1SK      = "GSI1SK"
	attrRunID       = "run_id"
	attrHost        = "host"
	attrNode        = "node"
	attrKind        = "kind"
	attrFormat      = "format"
	attrS3Key       = "s3_key"
	attrURL         = "url"
	attrContentType = "content_type"
	attrSizeBytes   = "size_bytes"
	attrCollectedAt = "collected_at"
	attrCreatedAt   = "created_at"
	attrExpiresAt   = "expires_at"
)

var nodePattern = regexp.MustCompile(`^[A-Za-z0-9.,_-]{1,255}$`)

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
}

// queryAPI is the subset of the DynamoDB client used by the repository.
type queryAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type ReportManifestRepository struct {
	client      queryAPI
	tableName   string
	strongReads bool
	retryDelay  time.Duration
}

type cursorMode string

const (
	cursorModeNode cursorMode = "node"
	cursorModeKind cursorMode = "kind"
)

type cursorPayload struct {
	Mode   cursorMode             `json:"mode"`
	Node   string                 `json:"node"`
	Kind   string                 `json:"kind,omitempty"`
	FromMS int64                  `json:"from_ms,omitempty"`
	ToMS   int64                  `json:"to_ms,omitempty"`
	Key    map[string]cursorValue `json:"key"`
}

type cursorValue struct {
	S string `json:"s,omitempty"`
	N string `json:"n,omitempty"`
}

func NewReportManifestRepository(ctx context.Context, cfg Config) (*ReportManifestRepository, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
	})

	return newReportManifestRepository(client, cfg), nil
}

func newReportManifestRepository(client queryAPI, cfg Config) *ReportManifestRepository {
	return &ReportManifestRepository{
		client:      client,
		tableName:   strings.TrimSpace(cfg.TableName),
		strongReads: cfg.StrongReads,
		retryDelay:  100 * time.Millisecond,
	}
}

func (r *ReportManifestRepository) PutBatch(ctx context.Context, records []port.ReportManifest) error {
	if len(records) == 0 {
		return nil
	}

	for start := 0; start < len(records); start += maxBatchWriteSize {
		end := min(start+maxBatchWriteSize, len(records))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, record := range records[start:end] {
			item, err := r.toItem(record)
			if err != nil {
				return err
			}
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		if err := r.writeBatchWithRetry(ctx, requests); err != nil {
			return err
		}
	}

	return nil
}

func (r *ReportManifestRepository) ListByNode(
	ctx context.Context,
	query port.ReportListQuery,
) (port.ReportListPage, error) {
	node := strings.TrimSpace(query.Node)
	if !nodePattern.MatchString(node) {
		return port.ReportListPage{}, fmt.Errorf("invalid node")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	kind := strings.TrimSpace(query.Kind)
	fromMS, toMS, hasRange, err := normalizeTimeRange(query.From, query.To)
	if err != nil {
		return port.ReportListPage{}, err
	}

	mode := cursorModeNode
	if kind != "" {
		mode = cursorModeKind
	}

	input := &dynamodb.QueryInput{
		TableName:                 &r.tableName,
		Limit:                     int32Pointer(int32(limit)),
		ScanIndexForward:          boolPointer(false),
		ConsistentRead:            boolPointer(r.strongReads),
		ExpressionAttributeNames:  map[string]string{},
		ExpressionAttributeValues: map[string]types.AttributeValue{},
	}

	// Both key layouts share the TS#<ms># sort prefix, so one set of bounds serves either index.
	pkAttr, skAttr := attrPK, attrSK
	pkValue := buildPK(node)
	if mode == cursorModeKind {
		pkAttr, skAttr = attrGSI1PK, attrGSI1SK
		pkValue = buildGSI1PK(node, kind)
		input.IndexName = stringPointer(reportManifestGSI1)
		input.ConsistentRead = nil
	}

	input.ExpressionAttributeNames["#pk"] = pkAttr
	input.ExpressionAttributeValues[":pk"] = &types.AttributeValueMemberS{Value: pkValue}
	keyCondition := "#pk = :pk"
	if hasRange {
		input.ExpressionAttributeNames["#sk"] = skAttr
		input.ExpressionAttributeValues[":from"] = &types.AttributeValueMemberS{Value: buildSortLowerBound(fromMS)}
		input.ExpressionAttributeValues[":to"] = &types.AttributeValueMemberS{Value: buildSortUpperBound(toMS)}
		keyCondition += " AND #sk BETWEEN :from AND :to"
	}
	input.KeyConditionExpression = &keyCondition

	if strings.TrimSpace(query.Cursor) != "" {
		exclusiveStartKey, err := decodeCursor(query.Cursor, mode, node, kind, fromMS, toMS)
		if err != nil {
			return port.ReportListPage{}, err
		}
		input.ExclusiveStartKey = exclusiveStartKey
	}

	output, err := r.client.Query(ctx, input)
	if err != nil {
		return port.ReportListPage{}, fmt.Errorf("dynamodb query failed: %w", err)
	}

	items := make([]port.ReportManifest, 0, len(output.Items))
	for _, raw := range output.Items {
		item, err := fromItem(raw)
		if err != nil {
			return port.ReportListPage{}, err
		}
		items = append(items, item)
	}

	nextCursor := ""
	if len(output.LastEvaluatedKey) > 0 {
		nextCursor, err = encodeCursor(output.LastEvaluatedKey, mode, node, kind, fromMS, toMS)
		if err != nil {
			return port.ReportListPage{}, err
		}
	}

	return port.ReportListPage{
		Items:      items,
		NextCursor: nextCursor,
	}, nil
}

func (r *ReportManifestRepository) writeBatchWithRetry(ctx context.Context, requests []types.WriteRequest) error {
	if len(requests) == 0 {
		return nil
	}

	pending := map[string][]types.WriteRequest{
		r.tableName: requests,
	}

	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		output, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("dynamodb batch write failed: %w", err)
		}

		if len(output.UnprocessedItems) == 0 {
			return nil
		}

		pending = output.UnprocessedItems

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * r.retryDelay):
		}
	}

	return fmt.Errorf("dynamodb batch write has unprocessed items after retries")
}

func (r *ReportManifestRepository) toItem(record port.ReportManifest) (map[string]types.AttributeValue, error) {
	node := strings.TrimSpace(record.Node)
	kind := strings.TrimSpace(record.Kind)
	s3Key := strings.TrimSpace(record.S3Key)
	if !nodePattern.MatchString(node) {
		return nil, fmt.Errorf("invalid node")
	}
	if kind == "" {
		return nil, fmt.Errorf("kind is required")
	}
	if s3Key == "" {
		return nil, fmt.Errorf("s3_key is required")
	}

	collectedAt := record.CollectedAt.UTC()
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	lastModified := record.LastModified.UTC()
	if lastModified.IsZero() {
		lastModified = collectedAt
	}

	collectedAtMS := collectedAt.UnixMilli()

	item := map[string]types.AttributeValue{
		attrPK:          &types.AttributeValueMemberS{Value: buildPK(node)},
		attrSK:          &types.AttributeValueMemberS{Value: buildSK(collectedAtMS, kind, s3Key)},
		attrGSI1PK:      &types.AttributeValueMemberS{Value: buildGSI1PK(node, kind)},
		attrGSI1SK:      &types.AttributeValueMemberS{Value: buildGSI1SK(collectedAtMS, s3Key)},
		attrNode:        &types.AttributeValueMemberS{Value: node},
		attrKind:        &types.AttributeValueMemberS{Value: kind},
		attrS3Key:       &types.AttributeValueMemberS{Value: s3Key},
		attrCollectedAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(collectedAtMS, 10)},
		attrCreatedAt:   &types.AttributeValueMemberN{Value: strconv.FormatInt(lastModified.UnixMilli(), 10)},
	}

	optional := map[string]string{
		attrRunID:       record.RunID,
		attrHost:        record.Host,
		attrFormat:      record.Format,
		attrURL:         record.URL,
		attrContentType: record.ContentType,
	}
	for name, value := range optional {
		if value = strings.TrimSpace(value); value != "" {
			item[name] = &types.AttributeValueMemberS{Value: value}
		}
	}
	if record.SizeBytes > 0 {
		item[attrSizeBytes] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.SizeBytes, 10)}
	}
	if !record.ExpiresAt.IsZero() {
		// DynamoDB TTL expects epoch seconds.
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.ExpiresAt.UTC().Unix(), 10)}
	}

	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (port.ReportManifest, error) {
	node, err := attrString(item, attrNode)
	if err != nil {
		return port.ReportManifest{}, err
	}
	kind, err := attrString(item, attrKind)
	if err != nil {
		return port.ReportManifest{}, err
	}
	s3Key, err := attrString(item, attrS3Key)
	if err != nil {
		return port.ReportManifest{}, err
	}

	collectedAtMS, err := attrInt64(item, attrCollectedAt)
	if err != nil {
		return port.ReportManifest{}, err
	}
	createdAtMS, err := attrInt64(item, attrCreatedAt)
	if err != nil {
		return port.ReportManifest{}, err
	}

	record := port.ReportManifest{
		RunID:        optionalString(item, attrRunID),
		Host:         optionalString(item, attrHost),
		Node:         node,
		Kind:         kind,
		Format:       optionalString(item, attrFormat),
		S3Key:        s3Key,
		URL:          optionalString(item, attrURL),
		ContentType:  optionalString(item, attrContentType),
		SizeBytes:    optionalInt64(item, attrSizeBytes),
		CollectedAt:  time.UnixMilli(collectedAtMS).UTC(),
		LastModified: time.UnixMilli(createdAtMS).UTC(),
	}

	if expiresAtSeconds := optionalInt64(item, attrExpiresAt); expiresAtSeconds > 0 {
		record.ExpiresAt = time.Unix(expiresAtSeconds, 0).UTC()
	}

	return record, nil
}

func normalizeTimeRange(from, to time.Time) (int64, int64, bool, error) {
	from = from.UTC()
	to = to.UTC()
	if from.IsZero() && to.IsZero() {
		return 0, math.MaxInt64, false, nil
	}

	fromMS := int64(0)
	toMS := int64(math.MaxInt64)
	if !from.IsZero() {
		fromMS = from.UnixMilli()
	}
	if !to.IsZero() {
		toMS = to.UnixMilli()
	}

	if fromMS > toMS {
		return 0, 0, false, fmt.Errorf("from must be less than or equal to to")
	}

	return fromMS, toMS, true, nil
}

func buildPK(node string) string {
	return "NODE#" + node
}

func buildSK(collectedAtMS int64, kind, s3Key string) string {
	return fmt.Sprintf("TS#%013d#KIND#%s#KEY#%s", collectedAtMS, kind, objectHash(s3Key))
}

func buildGSI1PK(node, kind string) string {
	return fmt.Sprintf("NODE#%s#KIND#%s", node, kind)
}

func buildGSI1SK(collectedAtMS int64, s3Key string) string {
	return fmt.Sprintf("TS#%013d#KEY#%s", collectedAtMS, objectHash(s3Key))
}

func buildSortLowerBound(tsMS int64) string {
	return fmt.Sprintf("TS#%013d#", tsMS)
}

func buildSortUpperBound(tsMS int64) string {
	return fmt.Sprintf("TS#%013d#~", tsMS)
}

func objectHash(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:8])
}

func encodeCursor(
	key map[string]types.AttributeValue,
	mode cursorMode,
	node, kind string,
	fromMS, toMS int64,
) (string, error) {
	values := make(map[string]cursorValue, len(key))
	for attributeName, raw := range key {
		switch value := raw.(type) {
		case *types.AttributeValueMemberS:
			values[attributeName] = cursorValue{S: value.Value}
		case *types.AttributeValueMemberN:
			values[attributeName] = cursorValue{N: value.Value}
		default:
			return "", fmt.Errorf("unsupported cursor attribute type for %s", attributeName)
		}
	}

	serialized, err := json.Marshal(cursorPayload{
		Mode:   mode,
		Node:   node,
		Kind:   kind,
		FromMS: fromMS,
		ToMS:   toMS,
		Key:    values,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(serialized), nil
}

func decodeCursor(
	cursor string,
	mode cursorMode,
	node, kind string,
	fromMS, toMS int64,
) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid cursor")
	}

	if payload.Mode != mode ||
		payload.Node != node ||
		payload.Kind != kind ||
		payload.FromMS != fromMS ||
		payload.ToMS != toMS {
		return nil, fmt.Errorf("cursor does not match query filters")
	}

	key := make(map[string]types.AttributeValue, len(payload.Key))
	for attributeName, value := range payload.Key {
		if value.S != "" {
			key[attributeName] = &types.AttributeValueMemberS{Value: value.S}
			continue
		}
		if value.N != "" {
			key[attributeName] = &types.AttributeValueMemberN{Value: value.N}
			continue
		}
		return nil, fmt.Errorf("invalid cursor")
	}

	return key, nil
}

func attrString(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("invalid attribute %s", name)
	}
	return value.Value, nil
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	value, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return value.Value
}

func attrInt64(item map[string]types.AttributeValue, name string) (int64, error) {
	raw, ok := item[name]
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("invalid attribute %s", name)
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s: %w", name, err)
	}
	return parsed, nil
}

func optionalInt64(item map[string]types.AttributeValue, name string) int64 {
	value, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func boolPointer(v bool) *bool {
	return &v
}

func int32Pointer(v int32) *int32 {
	return &v
}

func stringPointer(v string) *string {
	return &v
}
