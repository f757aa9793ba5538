package model

const (
	SessionsTable  = "ChatSessions"
	MessagesTable  = "ChatMessages"
	OperatorsTable = "Operators"
)

type OperatorItem struct {
	OperatorID   string `dynamodbav:"operatorId"`
	Username     string `dynamodbav:"username"`
	Email        string `dynamodbav:"email"`
	Role         string `dynamodbav:"role"`
	PasswordHash string `dynamodbav:"passwordHash"`
	CreatedAt    string `dynamodbav:"createdAt"`
}
