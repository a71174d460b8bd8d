package sandbox

import (
	"time"

	"github.com/google/uuid"
)

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func newUUID() string { return uuid.NewString() }
