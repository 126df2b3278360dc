package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const (
	defaultSellerIDPrefix = "S-"

	conditionalCheckFailed = "ConditionalCheckFailed"
	transactionConflict    = "TransactionConflict"
)

type DB struct {
	dynamoClient   *dynamodb.Client
	tableName      string
	sellerIDPrefix string
}

func NewDB(dynamoClient *dynamodb.Client, tableName string, sellerIDPrefix string) *DB {
	if sellerIDPrefix == "" {
		sellerIDPrefix = defaultSellerIDPrefix
	}

	return &DB{
		dynamoClient:   dynamoClient,
		tableName:      tableName,
		sellerIDPrefix: sellerIDPrefix,
	}
}

func newEntityConditional() expression.ConditionBuilder {
	return expression.Name("PK").AttributeNotExists()
}

// counterConditional passes when nobody moved the counter since it was read as current.
func counterConditional(current int) expression.ConditionBuilder {
	return expression.Name("PK").AttributeNotExists().
		Or(expression.Name("Seq").Equal(expression.Value(current)))
}

func exprMustBuild(builder expression.Builder) expression.Expression {
	expr, err := builder.Build()
	if err != nil {
		panic("failed to build dynamo expression")
	}

	return expr
}
