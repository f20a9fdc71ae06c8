// Package lockdao stores short-lived build leases so that only one build is
// submitted per entity and target at a time.
package lockdao

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/savaki/ddb/v2"
)

const (
	leaseSK  = "LEASE"
	leaseTTL = time.Hour // DynamoDB removes expired records lazily, so expiry is also checked on read
)

// PK represents the partition key: {Target}/{EntityRef}
type PK string

// NewPK creates a partition key from a target name and entity reference
func NewPK(target, entityRef string) PK {
	return PK(fmt.Sprintf("%s/%s", target, entityRef))
}

// ParsePK splits a partition key into target and entity reference. The entity
// reference may itself contain slashes.
func ParsePK(pk PK) (target, entityRef string, err error) {
	target, entityRef, ok := strings.Cut(string(pk), "/")
	if !ok || target == "" || entityRef == "" {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {target}/{entity-ref}", pk)
	}
	return target, entityRef, nil
}

// String returns the string representation
func (pk PK) String() string {
	return string(pk)
}

// Record represents a build lease
type Record struct {
	PK         PK     `ddb:"hash" dynamodbav:"pk"`  // {Target}/{EntityRef}
	SK         string `ddb:"range" dynamodbav:"sk"` // Always "LEASE"
	Holder     string `dynamodbav:"holder"`         // KSUID of the submission holding the lease
	Action     string `dynamodbav:"action"`
	AcquiredAt int64  `dynamodbav:"acquired_at"` // Unix timestamp when the lease was acquired
	TTL        int64  `dynamodbav:"ttl"`         // Unix timestamp for DynamoDB TTL expiry
}

// Expired reports whether the lease is past its TTL at the given time
func (r *Record) Expired(now time.Time) bool {
	return r.TTL <= now.Unix()
}

// AcquireInput contains fields for acquiring a build lease
type AcquireInput struct {
	Target    string // Deployment target name
	EntityRef string // Stringified entity reference
	Holder    string // Submission KSUID
	Action    string
}

// ReleaseInput contains fields for releasing a build lease
type ReleaseInput struct {
	PK     PK
	Holder string // must match the lease holder
}

// DAO provides data access operations for build leases
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
	now   func() time.Time
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	return newDAO(client, tableName)
}

func newDAO(api ddb.DynamoDBAPI, tableName string) *DAO {
	db := ddb.New(api)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
		now:   time.Now,
	}
}

// Acquire attempts to acquire a build lease.
// Returns the lease record if acquired, false if held by another submission.
// The write only succeeds when no live lease exists or the caller already
// holds it, so concurrent submissions cannot both acquire.
func (d *DAO) Acquire(ctx context.Context, input AcquireInput) (*Record, bool, error) {
	pk := NewPK(input.Target, input.EntityRef)
	if _, _, err := ParsePK(pk); err != nil {
		return nil, false, err
	}

	now := d.now()
	record := &Record{
		PK:         pk,
		SK:         leaseSK,
		Holder:     input.Holder,
		Action:     input.Action,
		AcquiredAt: now.Unix(),
		TTL:        now.Add(leaseTTL).Unix(),
	}

	err := d.table.Put(record).
		Condition("attribute_not_exists(#PK) or #TTL <= ? or #Holder = ?", now.Unix(), input.Holder).
		RunWithContext(ctx)
	if err != nil {
		if isConditionFailed(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to create lease: %w", err)
	}

	return record, true, nil
}

// Find retrieves the live lease for pk.
// Returns nil if there is no lease or it has expired.
func (d *DAO) Find(ctx context.Context, pk PK) (*Record, error) {
	if _, _, err := ParsePK(pk); err != nil {
		return nil, err
	}

	var record Record
	err := d.table.Get(pk.String()).
		Range(leaseSK).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return nil, nil
	}
	if record.Expired(d.now()) {
		return nil, nil
	}

	return &record, nil
}

// Release releases a build lease.
// Only succeeds if the lease is held by the given holder, has expired, or is
// already gone.
func (d *DAO) Release(ctx context.Context, input ReleaseInput) error {
	if _, _, err := ParsePK(input.PK); err != nil {
		return err
	}

	err := d.table.Delete(input.PK.String()).
		Range(leaseSK).
		Condition("attribute_not_exists(#PK) or #TTL <= ? or #Holder = ?", d.now().Unix(), input.Holder).
		RunWithContext(ctx)
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("lease %s not held by %s", input.PK, input.Holder)
		}
		return fmt.Errorf("failed to release lease: %w", err)
	}

	return nil
}

// Delete removes a lease regardless of who holds it
func (d *DAO) Delete(ctx context.Context, pk PK) error {
	if _, _, err := ParsePK(pk); err != nil {
		return err
	}

	err := d.table.Delete(pk.String()).
		Range(leaseSK).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete lease: %w", err)
	}

	return nil
}

func isConditionFailed(err error) bool {
	var conditionErr *types.ConditionalCheckFailedException
	return stderrors.As(err, &conditionErr)
}

func isNotFound(err error) bool {
	return ddb.IsItemNotFoundError(err)
}
