package store

import (
	"fmt"

	"github.com/google/uuid"
)

func JobKey(id uuid.UUID) string {
	return fmt.Sprintf("openshorts:job:%s", id)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("openshorts:ratelimit:%s", client)
}
