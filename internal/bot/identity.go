package bot

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewIdentity returns a random bot name such as "bot-9f86d081".
func NewIdentity() string {
	id := uuid.New()
	return "bot-" + hex.EncodeToString(id[:4])
}
