package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/loandesk/loandesk/internal/models"
	"github.com/sirupsen/logrus"
)

type LoanRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *logrus.Logger
}

func NewLoanRepository(client *dynamodb.Client, tableName string, logger *logrus.Logger) *LoanRepository {
	return &LoanRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *LoanRepository) ListByUserEmail(ctx context.Context, email string) ([]models.Loan, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: "USER#" + email},
			":prefix": &types.AttributeValueMemberS{Value: "LOAN#"},
		},
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to query loans from DynamoDB")
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}

	loans := make([]models.Loan, 0, len(result.Items))
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &loans); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal loans from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal loans: %w", err)
	}

	return loans, nil
}

func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	item, err := attributevalue.MarshalMap(loan)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal loan for DynamoDB")
		return fmt.Errorf("failed to marshal loan: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: loan.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: loan.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to create loan in DynamoDB")
		return fmt.Errorf("failed to create loan: %w", err)
	}

	return nil
}
