package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/iwanowww/supers/blobstore"
)

// CurrentName is the virtual blob holding the name of the live archive
// generation. On the commit store it is backed by DynamoDB rather than
// an S3 object, so readers never observe a torn pointer update.
const CurrentName = "CURRENT"

// DDBClient is the subset of the DynamoDB API the commit store uses.
// *dynamodb.Client satisfies it.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentModification is returned when two writers race to commit
// the same generation.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// CommitStore wraps an S3 Store and keeps the CURRENT pointer in a
// DynamoDB table with conditional writes. All other blobs pass through
// to S3 unchanged.
//
// The DynamoDB table needs a string partition key "base_uri" and a
// numeric sort key "version".
type CommitStore struct {
	store     *Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

// NewCommitStore creates a commit store. baseURI identifies this
// archive within the DynamoDB table, conventionally
// "s3://bucket/prefix".
func NewCommitStore(store *Store, ddb DDBClient, tableName, baseURI string) *CommitStore {
	return &CommitStore{
		store:     store,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Open opens a blob for reading. CURRENT is resolved from DynamoDB.
func (s *CommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == CurrentName {
		version, archive, err := s.latest(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(archive)}, nil
	}
	return s.store.Open(ctx, name)
}

// Create creates a writable blob. CURRENT cannot be streamed; use Put.
func (s *CommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == CurrentName {
		return nil, errors.New("CURRENT must be written with Put")
	}
	return s.store.Create(ctx, name)
}

// Put writes a blob. For CURRENT the content is the archive blob name
// and the write is a DynamoDB conditional put.
func (s *CommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == CurrentName {
		return s.commit(ctx, string(data))
	}
	return s.store.Put(ctx, name, data)
}

// Delete removes a blob. The CURRENT pointer itself is never deleted;
// commit history stays in DynamoDB.
func (s *CommitStore) Delete(ctx context.Context, name string) error {
	if name == CurrentName {
		return errors.New("CURRENT cannot be deleted")
	}
	return s.store.Delete(ctx, name)
}

// List lists blobs with the prefix, passing through to S3.
func (s *CommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.List(ctx, prefix)
}

// latest returns the newest committed version and its archive name, or
// version 0 when nothing has been committed yet.
func (s *CommitStore) latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":uri": &ddbtypes.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute in commit table")
	}
	archiveAttr, ok := item["archive"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid archive attribute in commit table")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}

	return version, archiveAttr.Value, nil
}

// commit advances CURRENT to the given archive name. The conditional
// put fails if another writer claimed the same version first.
func (s *CommitStore) commit(ctx context.Context, archive string) error {
	current, _, err := s.latest(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]ddbtypes.AttributeValue{
			"base_uri": &ddbtypes.AttributeValueMemberS{Value: s.baseURI},
			"version":  &ddbtypes.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"archive":  &ddbtypes.AttributeValueMemberS{Value: archive},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("commit version: %w", err)
	}

	return nil
}

// pointerBlob serves the resolved CURRENT content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}
