// Package dynamo provides a shared DynamoDB client factory.
// Only this package imports the DynamoDB SDK; adapters in other packages
// use the re-exported types and helpers defined here.
package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/technotrac/authcore/internal/awsx"
)

// Client wraps the AWS DynamoDB SDK client.
// Adapters access the underlying SDK client via the DB field.
type Client struct {
	DB *dynamodb.Client
}

// NewClient creates a DynamoDB client from a loaded AWS config.
// A non-empty endpoint (LocalStack) overrides the default resolver.
func NewClient(awsCfg aws.Config, endpoint string) *Client {
	return &Client{
		DB: dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if ep := awsx.BaseEndpoint(endpoint); ep != nil {
				o.BaseEndpoint = ep
			}
		}),
	}
}

// Operation types used by adapters.
type (
	GetItemInput  = dynamodb.GetItemInput
	GetItemOutput = dynamodb.GetItemOutput
	QueryInput    = dynamodb.QueryInput
	QueryOutput   = dynamodb.QueryOutput
)

// Transaction types.
type (
	TransactWriteItemsInput  = dynamodb.TransactWriteItemsInput
	TransactWriteItemsOutput = dynamodb.TransactWriteItemsOutput
	TransactWriteItem        = types.TransactWriteItem
	Put                      = types.Put
)

// Attribute value types.
type (
	AttributeValue        = types.AttributeValue
	AttributeValueMemberS = types.AttributeValueMemberS
)

// Options is the DynamoDB client options type.
// Re-exported so adapter-defined interfaces can reference optFns variadic params.
type Options = dynamodb.Options

// String returns a pointer to a string value.
var String = aws.String

// Int32 returns a pointer to an int32 value.
var Int32 = aws.Int32

// MarshalMap serializes a Go value into a DynamoDB attribute value map.
var MarshalMap = attributevalue.MarshalMap

// UnmarshalMap deserializes a DynamoDB attribute value map into a Go value.
var UnmarshalMap = attributevalue.UnmarshalMap

// IsTransactionCanceled reports whether err is a DynamoDB
// TransactionCanceledException. When true, it returns the cancellation
// reason codes, one per transaction item ("" where that item passed).
func IsTransactionCanceled(err error) ([]string, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	reasons := make([]string, len(tce.CancellationReasons))
	for i, r := range tce.CancellationReasons {
		if r.Code != nil {
			reasons[i] = *r.Code
		}
	}
	return reasons, true
}

// ErrTransactionCanceled returns a TransactionCanceledException carrying the
// given reason codes, for adapter tests. DynamoDB is the only producer in
// production.
func ErrTransactionCanceled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, code := range codes {
		if code != "" {
			reasons[i] = types.CancellationReason{Code: aws.String(code)}
		}
	}
	return &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: reasons,
	}
}
