package auth

import (
	"context"
	"errors"
	"strings"

	"support-chat-backend/internal/database"
	"support-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("auth repository: not found")
	ErrExists   = errors.New("auth repository: already exists")
)

type Repository interface {
	CreateOperator(ctx context.Context, operator model.OperatorItem) error
	GetOperator(ctx context.Context, operatorID string) (model.OperatorItem, error)
	FindOperatorByEmail(ctx context.Context, email string) (model.OperatorItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) CreateOperator(ctx context.Context, operator model.OperatorItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.OperatorsTable, operator, "operatorId")
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrExists
	}
	return err
}

func (r *DynamoRepository) GetOperator(ctx context.Context, operatorID string) (model.OperatorItem, error) {
	var operator model.OperatorItem
	err := r.db.Client.GetItem(
		ctx,
		model.OperatorsTable,
		map[string]types.AttributeValue{
			"operatorId": &types.AttributeValueMemberS{Value: operatorID},
		},
		&operator,
	)
	if err != nil {
		if strings.Contains(err.Error(), "item not found") {
			return model.OperatorItem{}, ErrNotFound
		}
		return model.OperatorItem{}, err
	}
	return operator, nil
}

func (r *DynamoRepository) FindOperatorByEmail(ctx context.Context, email string) (model.OperatorItem, error) {
	items, err := r.db.Client.ScanAllItems(
		ctx,
		model.OperatorsTable,
		aws.String("email = :email"),
		map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
		nil,
	)
	if err != nil {
		return model.OperatorItem{}, err
	}
	if len(items) == 0 {
		return model.OperatorItem{}, ErrNotFound
	}

	var operator model.OperatorItem
	if err := attributevalue.UnmarshalMap(items[0], &operator); err != nil {
		return model.OperatorItem{}, err
	}
	return operator, nil
}
