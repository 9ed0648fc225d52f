package adapter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/dynamo"
)

// userDynamoDB is a narrow, consumer-defined interface for DynamoDB operations
// required by the user store. The *dynamodb.Client satisfies this interface.
type userDynamoDB interface {
	GetItem(ctx context.Context, params *dynamo.GetItemInput, optFns ...func(*dynamo.Options)) (*dynamo.GetItemOutput, error)
	Query(ctx context.Context, params *dynamo.QueryInput, optFns ...func(*dynamo.Options)) (*dynamo.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamo.TransactWriteItemsInput, optFns ...func(*dynamo.Options)) (*dynamo.TransactWriteItemsOutput, error)
}

// phoneIndex is the GSI keyed by phone_number.
const phoneIndex = "phone_number-index"

// userItem is the DynamoDB item shape for the users table.
type userItem struct {
	UserID      string `dynamodbav:"user_id"`
	PhoneNumber string `dynamodbav:"phone_number"`
	Role        string `dynamodbav:"role"`
	CreatedAt   string `dynamodbav:"created_at"`
}

// phoneItem claims a phone number for one user. The phones table is keyed by
// phone_number, which makes the number unique across users.
type phoneItem struct {
	PhoneNumber string `dynamodbav:"phone_number"`
	UserID      string `dynamodbav:"user_id"`
}

// UserStore persists users in DynamoDB. The auth core only looks users up
// by ID or phone and creates them on first verification.
type UserStore struct {
	db          userDynamoDB
	tableName   string
	phonesTable string
}

// NewUserStore creates a UserStore backed by the given DynamoDB client.
// phonesTable holds one claim item per registered phone number.
func NewUserStore(db userDynamoDB, tableName, phonesTable string) *UserStore {
	return &UserStore{db: db, tableName: tableName, phonesTable: phonesTable}
}

// GetByID retrieves a user by ID using a strongly consistent read.
// Returns domain.ErrNotFound when no user exists for the given ID.
func (s *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "dynamo.users.get_by_id")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "GetItem"),
	)

	consistentRead := true
	out, err := s.db.GetItem(ctx, &dynamo.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]dynamo.AttributeValue{
			"user_id": &dynamo.AttributeValueMemberS{Value: id.String()},
		},
		ConsistentRead: &consistentRead,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("user store: get by id: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user store: get by id: %w", domain.ErrNotFound)
	}

	var item userItem
	if err := dynamo.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("user store: unmarshal user: %w", err)
	}
	return item.toDomain()
}

// FindByPhone looks up a user by phone number via the phone_number-index
// GSI, then fetches the full record with a consistent read.
// Returns domain.ErrNotFound when no user exists for the given phone.
func (s *UserStore) FindByPhone(ctx context.Context, phone domain.PhoneNumber) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "dynamo.users.find_by_phone")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "Query"),
	)

	keyExpr := "phone_number = :phone"
	indexName := phoneIndex
	out, err := s.db.Query(ctx, &dynamo.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &indexName,
		KeyConditionExpression: &keyExpr,
		ExpressionAttributeValues: map[string]dynamo.AttributeValue{
			":phone": &dynamo.AttributeValueMemberS{Value: phone.String()},
		},
		Limit: dynamo.Int32(1),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("user store: find by phone query: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user store: find by phone: %w", domain.ErrNotFound)
	}

	var projected struct {
		UserID string `dynamodbav:"user_id"`
	}
	if err := dynamo.UnmarshalMap(out.Items[0], &projected); err != nil {
		return nil, fmt.Errorf("user store: unmarshal gsi projection: %w", err)
	}
	id, err := domain.NewUserID(projected.UserID)
	if err != nil {
		return nil, fmt.Errorf("user store: gsi projection: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("user store: find by phone: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Create writes a new user together with the claim on its phone number in
// one transaction:
//
//	[0] user put, conditional on the user ID being unused
//	[1] phone claim put, conditional on the phone being unclaimed
//
// If either condition fails nothing is written and domain.ErrAlreadyExists
// is returned.
func (s *UserStore) Create(ctx context.Context, user domain.User) error {
	ctx, span := tracer.Start(ctx, "dynamo.users.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.operation", "TransactWriteItems"),
	)

	userAV, err := dynamo.MarshalMap(userItem{
		UserID:      user.ID.String(),
		PhoneNumber: user.Phone.String(),
		Role:        string(user.Role),
		CreatedAt:   user.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("user store: marshal user: %w", err)
	}
	phoneAV, err := dynamo.MarshalMap(phoneItem{
		PhoneNumber: user.Phone.String(),
		UserID:      user.ID.String(),
	})
	if err != nil {
		return fmt.Errorf("user store: marshal phone claim: %w", err)
	}

	_, err = s.db.TransactWriteItems(ctx, &dynamo.TransactWriteItemsInput{
		TransactItems: []dynamo.TransactWriteItem{
			{Put: &dynamo.Put{
				TableName:           &s.tableName,
				Item:                userAV,
				ConditionExpression: dynamo.String("attribute_not_exists(user_id)"),
			}},
			{Put: &dynamo.Put{
				TableName:           &s.phonesTable,
				Item:                phoneAV,
				ConditionExpression: dynamo.String("attribute_not_exists(phone_number)"),
			}},
		},
	})
	if err != nil {
		if reasons, ok := dynamo.IsTransactionCanceled(err); ok {
			for i, reason := range reasons {
				if reason == "ConditionalCheckFailed" && i < len(createItemNames) {
					return fmt.Errorf("user store: create: %s taken: %w", createItemNames[i], domain.ErrAlreadyExists)
				}
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("user store: create: %w: %w", domain.ErrStoreUnavailable, err)
	}

	return nil
}

// createItemNames labels the Create transaction items by index.
var createItemNames = [...]string{"user id", "phone number"}

func (i userItem) toDomain() (*domain.User, error) {
	id, err := domain.NewUserID(i.UserID)
	if err != nil {
		return nil, fmt.Errorf("user store: stored user: %w", err)
	}
	phone, err := domain.NewPhoneNumber(i.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("user store: stored user: %w", err)
	}
	role, err := domain.ParseRole(i.Role)
	if err != nil {
		return nil, fmt.Errorf("user store: stored user: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339, i.CreatedAt)

	return &domain.User{ID: id, Phone: phone, Role: role, CreatedAt: createdAt}, nil
}
