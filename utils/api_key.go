package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateServiceKey returns a new service key using a stable supportchat_
// prefix followed by the uppercase UUID without dashes. The AI collaborator
// authenticates its internal calls with a key in this format.
func GenerateServiceKey() string {
	key := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "supportchat_" + key
}
