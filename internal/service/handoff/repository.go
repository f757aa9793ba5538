package handoff

import (
	"context"
	"errors"
	"sort"
	"strings"

	"support-chat-backend/internal/database"
	"support-chat-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound = errors.New("handoff repository: not found")

	// ErrConflict reports that a guarded write was rejected because the
	// session no longer satisfied the transition's precondition.
	ErrConflict = errors.New("handoff repository: conflict")
)

type Repository interface {
	CreateSession(ctx context.Context, session model.ChatSessionItem) error
	GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error)
	ListSessions(ctx context.Context) ([]model.ChatSessionItem, error)
	MarkWaitingOperator(ctx context.Context, sessionID, now string) (model.ChatSessionItem, error)
	TakeSession(ctx context.Context, sessionID, operatorID, now string) (model.ChatSessionItem, error)
	ReleaseSession(ctx context.Context, sessionID, operatorID, now string) (model.ChatSessionItem, error)
	CloseSession(ctx context.Context, sessionID, now string) (model.ChatSessionItem, error)
	CreateMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, sessionID string) ([]model.MessageItem, error)
	RecordMessageActivity(ctx context.Context, sessionID string, author model.MessageAuthor, operatorID string, now string) (model.ChatSessionItem, error)
	GetOperator(ctx context.Context, operatorID string) (model.OperatorItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"sessionId": &types.AttributeValueMemberS{Value: sessionID},
	}
}

func (r *DynamoRepository) CreateSession(ctx context.Context, session model.ChatSessionItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.SessionsTable, session, "sessionId")
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	var session model.ChatSessionItem
	err := r.db.Client.GetItem(ctx, model.SessionsTable, sessionKey(sessionID), &session)
	if err != nil {
		if isNotFound(err) {
			return model.ChatSessionItem{}, ErrNotFound
		}
		return model.ChatSessionItem{}, err
	}
	return session, nil
}

func (r *DynamoRepository) ListSessions(ctx context.Context) ([]model.ChatSessionItem, error) {
	items, err := r.db.Client.ScanAllItems(ctx, model.SessionsTable, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	sessions := make([]model.ChatSessionItem, 0, len(items))
	for _, item := range items {
		var session model.ChatSessionItem
		if err := attributevalue.UnmarshalMap(item, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// MarkWaitingOperator moves an AI-handled session into the operator queue.
// The condition only matches status == active; a session already waiting is
// reported as ErrConflict so the service can treat the call as a no-op.
func (r *DynamoRepository) MarkWaitingOperator(ctx context.Context, sessionID, now string) (model.ChatSessionItem, error) {
	var session model.ChatSessionItem
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.SessionsTable,
		sessionKey(sessionID),
		"SET #status = :waiting, #version = #version + :one, #lastActivity = :now",
		aws.String("#status = :active"),
		map[string]types.AttributeValue{
			":waiting": &types.AttributeValueMemberS{Value: string(model.SessionStatusWaitingOperator)},
			":active":  &types.AttributeValueMemberS{Value: string(model.SessionStatusActive)},
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":now":     &types.AttributeValueMemberS{Value: now},
		},
		map[string]string{
			"#status":       "status",
			"#version":      "version",
			"#lastActivity": "lastActivity",
		},
		&session,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ChatSessionItem{}, ErrConflict
		}
		return model.ChatSessionItem{}, err
	}
	return session, nil
}

// TakeSession is the take compare-and-swap: the status check and the handler
// assignment happen in one conditional update, so of any number of racing
// operators exactly one observes the precondition and wins.
func (r *DynamoRepository) TakeSession(ctx context.Context, sessionID, operatorID, now string) (model.ChatSessionItem, error) {
	var session model.ChatSessionItem
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.SessionsTable,
		sessionKey(sessionID),
		"SET #status = :withOperator, #handlerType = :operator, #handlerOperatorId = :operatorId, #version = #version + :one, #lastActivity = :now",
		aws.String("#status = :active OR #status = :waiting"),
		map[string]types.AttributeValue{
			":withOperator": &types.AttributeValueMemberS{Value: string(model.SessionStatusWithOperator)},
			":operator":     &types.AttributeValueMemberS{Value: string(model.HandlerTypeOperator)},
			":operatorId":   &types.AttributeValueMemberS{Value: operatorID},
			":active":       &types.AttributeValueMemberS{Value: string(model.SessionStatusActive)},
			":waiting":      &types.AttributeValueMemberS{Value: string(model.SessionStatusWaitingOperator)},
			":one":          &types.AttributeValueMemberN{Value: "1"},
			":now":          &types.AttributeValueMemberS{Value: now},
		},
		map[string]string{
			"#status":            "status",
			"#handlerType":       "handlerType",
			"#handlerOperatorId": "handlerOperatorId",
			"#version":           "version",
			"#lastActivity":      "lastActivity",
		},
		&session,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ChatSessionItem{}, ErrConflict
		}
		return model.ChatSessionItem{}, err
	}
	return session, nil
}

// ReleaseSession hands a session back to AI. The owner check is part of the
// condition, so a release by anyone but the current handler is rejected
// without touching the record.
func (r *DynamoRepository) ReleaseSession(ctx context.Context, sessionID, operatorID, now string) (model.ChatSessionItem, error) {
	var session model.ChatSessionItem
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.SessionsTable,
		sessionKey(sessionID),
		"SET #status = :active, #handlerType = :ai, #version = #version + :one, #lastActivity = :now REMOVE #handlerOperatorId",
		aws.String("#status = :withOperator AND #handlerOperatorId = :operatorId"),
		map[string]types.AttributeValue{
			":active":       &types.AttributeValueMemberS{Value: string(model.SessionStatusActive)},
			":ai":           &types.AttributeValueMemberS{Value: string(model.HandlerTypeAI)},
			":withOperator": &types.AttributeValueMemberS{Value: string(model.SessionStatusWithOperator)},
			":operatorId":   &types.AttributeValueMemberS{Value: operatorID},
			":one":          &types.AttributeValueMemberN{Value: "1"},
			":now":          &types.AttributeValueMemberS{Value: now},
		},
		map[string]string{
			"#status":            "status",
			"#handlerType":       "handlerType",
			"#handlerOperatorId": "handlerOperatorId",
			"#version":           "version",
			"#lastActivity":      "lastActivity",
		},
		&session,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ChatSessionItem{}, ErrConflict
		}
		return model.ChatSessionItem{}, err
	}
	return session, nil
}

func (r *DynamoRepository) CloseSession(ctx context.Context, sessionID, now string) (model.ChatSessionItem, error) {
	var session model.ChatSessionItem
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.SessionsTable,
		sessionKey(sessionID),
		"SET #status = :closed, #handlerType = :ai, #version = #version + :one, #lastActivity = :now, #closedAt = :now REMOVE #handlerOperatorId",
		aws.String("#status <> :closed"),
		map[string]types.AttributeValue{
			":closed": &types.AttributeValueMemberS{Value: string(model.SessionStatusClosed)},
			":ai":     &types.AttributeValueMemberS{Value: string(model.HandlerTypeAI)},
			":one":    &types.AttributeValueMemberN{Value: "1"},
			":now":    &types.AttributeValueMemberS{Value: now},
		},
		map[string]string{
			"#status":            "status",
			"#handlerType":       "handlerType",
			"#handlerOperatorId": "handlerOperatorId",
			"#version":           "version",
			"#lastActivity":      "lastActivity",
			"#closedAt":          "closedAt",
		},
		&session,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ChatSessionItem{}, ErrConflict
		}
		return model.ChatSessionItem{}, err
	}
	return session, nil
}

func (r *DynamoRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, message)
}

func (r *DynamoRepository) ListMessages(ctx context.Context, sessionID string) ([]model.MessageItem, error) {
	forward := true
	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		nil,
		"sessionId = :sessionId",
		map[string]types.AttributeValue{
			":sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
		nil,
		&forward,
	)
	if err != nil {
		return nil, err
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SK < messages[j].SK
	})
	return messages, nil
}

// RecordMessageActivity bumps the per-author counter, lastActivity and
// version in one guarded write. The guard doubles as the authorization
// check: it is evaluated against the stored handler at write time, not
// against whatever the caller last read.
func (r *DynamoRepository) RecordMessageActivity(ctx context.Context, sessionID string, author model.MessageAuthor, operatorID string, now string) (model.ChatSessionItem, error) {
	counterAttr := "userMessages"
	condition := "#status <> :closed"
	values := map[string]types.AttributeValue{
		":closed": &types.AttributeValueMemberS{Value: string(model.SessionStatusClosed)},
		":one":    &types.AttributeValueMemberN{Value: "1"},
		":now":    &types.AttributeValueMemberS{Value: now},
	}
	names := map[string]string{
		"#status":       "status",
		"#version":      "version",
		"#lastActivity": "lastActivity",
	}

	switch author {
	case model.MessageAuthorAI:
		counterAttr = "aiMessages"
		condition = "#status <> :closed AND #handlerType = :ai"
		values[":ai"] = &types.AttributeValueMemberS{Value: string(model.HandlerTypeAI)}
		names["#handlerType"] = "handlerType"
	case model.MessageAuthorOperator:
		counterAttr = "operatorMessages"
		condition = "#status = :withOperator AND #handlerOperatorId = :operatorId"
		delete(values, ":closed")
		values[":withOperator"] = &types.AttributeValueMemberS{Value: string(model.SessionStatusWithOperator)}
		values[":operatorId"] = &types.AttributeValueMemberS{Value: operatorID}
		names["#handlerOperatorId"] = "handlerOperatorId"
	}
	names["#counter"] = counterAttr

	var session model.ChatSessionItem
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.SessionsTable,
		sessionKey(sessionID),
		"SET #counter = #counter + :one, #version = #version + :one, #lastActivity = :now",
		aws.String(condition),
		values,
		names,
		&session,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ChatSessionItem{}, ErrConflict
		}
		return model.ChatSessionItem{}, err
	}
	return session, nil
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
		if isNotFound(err) {
			return model.OperatorItem{}, ErrNotFound
		}
		return model.OperatorItem{}, err
	}
	return operator, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
