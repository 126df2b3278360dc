package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/kickzcaviar/seller-registration/onboarding"
)

var _ onboarding.Repository = &DB{}

type sellerDynamo struct {
	PK string
	SK string

	ID           string
	Version      int
	SellerNumber int
	SellerID     string
	CreatedAt    time.Time

	DiscordID       string
	DiscordUsername string
	DiscordTag      string
	DiscordHandle   string

	CountryCode string
	Country     string

	FullName string
	Company  string
	TaxID    string
	Email    string

	AddressLine1  string
	AddressLine2  string
	PostalCode    string
	City          string
	PayoutDetails string

	ConsentVersion    string
	ConsentMethod     string
	ConsentAcceptedAt time.Time
}

type sellerCounterDynamo struct {
	PK  string
	SK  string
	Seq int
}

const (
	sellerEntityName  = "SELLER"
	counterEntityName = "COUNTER"

	maxCounterAttempts = 10
)

func sellerPK(discordID string) string {
	return fmt.Sprintf("%s#%s", sellerEntityName, discordID)
}

func sellerSK() string {
	return sellerEntityName
}

func sellerCounterPK() string {
	return fmt.Sprintf("%s#%s", counterEntityName, sellerEntityName)
}

func sellerCounterKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sellerCounterPK()},
		"SK": &types.AttributeValueMemberS{Value: counterEntityName},
	}
}

func sellerToDynamo(s onboarding.Seller) sellerDynamo {
	return sellerDynamo{
		PK:                sellerPK(s.DiscordID),
		SK:                sellerSK(),
		ID:                s.ID.String(),
		Version:           s.Version,
		SellerNumber:      s.SellerNumber,
		SellerID:          s.SellerID,
		CreatedAt:         s.CreatedAt,
		DiscordID:         s.DiscordID,
		DiscordUsername:   s.DiscordUsername,
		DiscordTag:        s.DiscordTag,
		DiscordHandle:     s.DiscordHandle,
		CountryCode:       s.Country.Code,
		Country:           s.Country.Name,
		FullName:          s.Contact.FullName,
		Company:           s.Contact.Company,
		TaxID:             s.Contact.TaxID,
		Email:             s.Contact.Email,
		AddressLine1:      s.Address.Line1,
		AddressLine2:      s.Address.Line2,
		PostalCode:        s.Address.PostalCode,
		City:              s.Address.City,
		PayoutDetails:     s.Address.PayoutDetails,
		ConsentVersion:    s.Consent.Version,
		ConsentMethod:     s.Consent.Method,
		ConsentAcceptedAt: s.Consent.AcceptedAt,
	}
}

func dynamoToSeller(d sellerDynamo) onboarding.Seller {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		// Records typed in by hand on the automation side have no store id.
		id = uuid.Nil
	}

	country, err := onboarding.LookupCountry(d.CountryCode)
	if err != nil {
		country = onboarding.Country{Code: d.CountryCode, Name: d.Country}
	}

	return onboarding.Seller{
		ID:              id,
		Version:         d.Version,
		SellerNumber:    d.SellerNumber,
		SellerID:        d.SellerID,
		CreatedAt:       d.CreatedAt,
		DiscordID:       d.DiscordID,
		DiscordUsername: d.DiscordUsername,
		DiscordTag:      d.DiscordTag,
		DiscordHandle:   d.DiscordHandle,
		Country:         country,
		Contact: onboarding.ContactInfo{
			FullName: d.FullName,
			Company:  d.Company,
			TaxID:    d.TaxID,
			Email:    d.Email,
		},
		Address: onboarding.AddressInfo{
			Line1:         d.AddressLine1,
			Line2:         d.AddressLine2,
			PostalCode:    d.PostalCode,
			City:          d.City,
			PayoutDetails: d.PayoutDetails,
		},
		Consent: onboarding.Consent{
			Version:    d.ConsentVersion,
			Method:     d.ConsentMethod,
			AcceptedAt: d.ConsentAcceptedAt,
		},
	}
}

func (d *DB) GetSellerByDiscordID(ctx context.Context, discordID string) (onboarding.Seller, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sellerPK(discordID)},
			"SK": &types.AttributeValueMemberS{Value: sellerSK()},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return onboarding.Seller{}, onboarding.NewTimeoutError("GetSellerByDiscordID timed out")
		}
		return onboarding.Seller{}, onboarding.NewFailedToFetchError(fmt.Sprintf("Failed to fetch seller with Discord ID %q", discordID), err)
	}

	if len(resp.Item) == 0 {
		return onboarding.Seller{}, onboarding.NewSellerDoesNotExistError(fmt.Sprintf("Seller with Discord ID %q not found", discordID), nil)
	}

	var seller sellerDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &seller)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal seller from dynamo: %s", err))
	}

	return dynamoToSeller(seller), nil
}

// FindSellerByContact returns the first seller, in scan order, whose DiscordHandle
// contains any of the candidates. The candidates travel as expression values so
// quotes and other characters in names cannot change the filter.
func (d *DB) FindSellerByContact(ctx context.Context, candidates []string) (onboarding.Seller, error) {
	if len(candidates) == 0 {
		return onboarding.Seller{}, onboarding.NewSellerDoesNotExistError("No contact candidates to search for", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	expr := exprMustBuild(expression.NewBuilder().WithFilter(contactFilter(candidates)))

	var startKey map[string]types.AttributeValue
	for {
		result, err := d.dynamoClient.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(d.tableName),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return onboarding.Seller{}, onboarding.NewTimeoutError("FindSellerByContact timed out")
			}
			return onboarding.Seller{}, onboarding.NewFailedToFetchError("Failed to scan sellers by contact", err)
		}

		if len(result.Items) > 0 {
			var seller sellerDynamo
			err = attributevalue.UnmarshalMap(result.Items[0], &seller)
			if err != nil {
				panic(fmt.Sprintf("failed to unmarshal seller from dynamo: %s", err))
			}
			return dynamoToSeller(seller), nil
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	return onboarding.Seller{}, onboarding.NewSellerDoesNotExistError("No seller matched the contact candidates", nil)
}

func contactFilter(candidates []string) expression.ConditionBuilder {
	conds := make([]expression.ConditionBuilder, 0, len(candidates))
	for _, c := range candidates {
		conds = append(conds, expression.Contains(expression.Name("DiscordHandle"), c))
	}

	anyCandidate := conds[0]
	if len(conds) > 1 {
		anyCandidate = expression.Or(conds[0], conds[1], conds[2:]...)
	}

	return expression.Name("SK").Equal(expression.Value(sellerSK())).And(anyCandidate)
}

// CreateSeller writes the seller and bumps the seller counter in one transaction.
// The seller put is conditional on the Discord ID being unused, which is what makes
// concurrent registrations of one user collapse into a single record.
func (d *DB) CreateSeller(ctx context.Context, seller onboarding.Seller) (onboarding.Seller, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for range maxCounterAttempts {
		current, err := d.currentSellerSeq(ctx)
		if err != nil {
			return onboarding.Seller{}, err
		}

		seller.SellerNumber = current + 1
		seller.SellerID = fmt.Sprintf("%s%d", d.sellerIDPrefix, seller.SellerNumber)

		retry, err := d.putSellerWithCounter(ctx, seller, current)
		if err != nil {
			return onboarding.Seller{}, err
		}
		if !retry {
			return seller, nil
		}
	}

	return onboarding.Seller{}, onboarding.NewFailedToWriteError(fmt.Sprintf("Seller counter kept moving after %d attempts", maxCounterAttempts), nil)
}

func (d *DB) putSellerWithCounter(ctx context.Context, seller onboarding.Seller, currentSeq int) (bool, error) {
	dynamoSeller := sellerToDynamo(seller)

	sellerItem, err := attributevalue.MarshalMap(dynamoSeller)
	if err != nil {
		return false, onboarding.NewFailedToTranslateToDBModelError("Failed to translate seller to dynamo model", err)
	}
	sellerExpr := exprMustBuild(expression.NewBuilder().WithCondition(newEntityConditional()))

	counterItem, err := attributevalue.MarshalMap(sellerCounterDynamo{
		PK:  sellerCounterPK(),
		SK:  counterEntityName,
		Seq: seller.SellerNumber,
	})
	if err != nil {
		return false, onboarding.NewFailedToTranslateToDBModelError("Failed to translate seller counter to dynamo model", err)
	}
	counterExpr := exprMustBuild(expression.NewBuilder().WithCondition(counterConditional(currentSeq)))

	_, err = d.dynamoClient.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 aws.String(d.tableName),
					Item:                      sellerItem,
					ConditionExpression:       sellerExpr.Condition(),
					ExpressionAttributeNames:  sellerExpr.Names(),
					ExpressionAttributeValues: sellerExpr.Values(),
				},
			},
			{
				Put: &types.Put{
					TableName:                 aws.String(d.tableName),
					Item:                      counterItem,
					ConditionExpression:       counterExpr.Condition(),
					ExpressionAttributeNames:  counterExpr.Names(),
					ExpressionAttributeValues: counterExpr.Values(),
				},
			},
		},
	})
	if err == nil {
		return false, nil
	}

	var transactionFailedErr *types.TransactionCanceledException
	if errors.As(err, &transactionFailedErr) {
		reasons := transactionFailedErr.CancellationReasons
		if len(reasons) > 0 && aws.ToString(reasons[0].Code) == conditionalCheckFailed {
			return false, onboarding.NewSellerAlreadyExistsError(fmt.Sprintf("Seller with Discord ID %q already exists", seller.DiscordID), err)
		}
		if len(reasons) > 1 && aws.ToString(reasons[1].Code) == conditionalCheckFailed {
			return true, nil
		}
		for _, r := range reasons {
			if aws.ToString(r.Code) == transactionConflict {
				return true, nil
			}
		}
		return false, onboarding.NewFailedToWriteError("Transaction conflict error", err)
	} else if errors.Is(err, context.DeadlineExceeded) {
		return false, onboarding.NewTimeoutError("CreateSeller timed out")
	}

	return false, onboarding.NewFailedToWriteError("Failed TransactWriteItems call", err)
}

func (d *DB) currentSellerSeq(ctx context.Context) (int, error) {
	resp, err := d.dynamoClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            sellerCounterKey(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, onboarding.NewTimeoutError("Reading the seller counter timed out")
		}
		return 0, onboarding.NewFailedToFetchError("Failed to fetch seller counter", err)
	}

	if len(resp.Item) == 0 {
		return 0, nil
	}

	var counter sellerCounterDynamo
	err = attributevalue.UnmarshalMap(resp.Item, &counter)
	if err != nil {
		panic(fmt.Sprintf("failed to unmarshal seller counter from dynamo: %s", err))
	}
	return counter.Seq, nil
}
