package model

import "fmt"

type SessionStatus string

const (
	SessionStatusActive          SessionStatus = "active"
	SessionStatusWaitingOperator SessionStatus = "waiting_operator"
	SessionStatusWithOperator    SessionStatus = "with_operator"
	SessionStatusClosed          SessionStatus = "closed"
)

type HandlerType string

const (
	HandlerTypeAI       HandlerType = "ai"
	HandlerTypeOperator HandlerType = "operator"
)

// ChatSessionItem is the durable session record. Version increases by one on
// every accepted write, so any two snapshots of the same session are ordered.
// Invariant: HandlerType == operator exactly when Status == with_operator.
type ChatSessionItem struct {
	SessionID         string        `dynamodbav:"sessionId"`
	UserID            string        `dynamodbav:"userId"`
	UserName          string        `dynamodbav:"userName,omitempty"`
	Status            SessionStatus `dynamodbav:"status"`
	HandlerType       HandlerType   `dynamodbav:"handlerType"`
	HandlerOperatorID string        `dynamodbav:"handlerOperatorId,omitempty"`
	Version           int64         `dynamodbav:"version"`
	UserMessages      int64         `dynamodbav:"userMessages"`
	AIMessages        int64         `dynamodbav:"aiMessages"`
	OperatorMessages  int64         `dynamodbav:"operatorMessages"`
	LastActivity      string        `dynamodbav:"lastActivity"`
	CreatedAt         string        `dynamodbav:"createdAt"`
	ClosedAt          string        `dynamodbav:"closedAt,omitempty"`
}

func (s ChatSessionItem) HandledBy(operatorID string) bool {
	return s.Status == SessionStatusWithOperator &&
		s.HandlerType == HandlerTypeOperator &&
		s.HandlerOperatorID == operatorID
}

func MessageSK(createdAt, messageID string) string {
	return fmt.Sprintf("%s#%s", createdAt, messageID)
}
