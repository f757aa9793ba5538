package model

type MessageAuthor string

const (
	MessageAuthorUser     MessageAuthor = "user"
	MessageAuthorAI       MessageAuthor = "ai"
	MessageAuthorOperator MessageAuthor = "operator"
)

// MessageItem rows are append-only: once written they are never mutated.
// SK embeds the creation timestamp so a plain ascending query returns
// messages in chronological order with the id as tie-break.
type MessageItem struct {
	SessionID      string        `dynamodbav:"sessionId"`
	SK             string        `dynamodbav:"sk"`
	MessageID      string        `dynamodbav:"messageId"`
	Author         MessageAuthor `dynamodbav:"author"`
	Text           string        `dynamodbav:"text"`
	Image          *MessageImage `dynamodbav:"image,omitempty"`
	AIAnalysis     string        `dynamodbav:"aiAnalysis,omitempty"`
	ResponseTimeMs int64         `dynamodbav:"responseTimeMs,omitempty"`
	CreatedAt      string        `dynamodbav:"createdAt"`
}

type MessageImage struct {
	OriginalName string `dynamodbav:"originalName"`
	URL          string `dynamodbav:"url"`
}
