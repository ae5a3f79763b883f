package backend

import (
	"context"

	"github.com/livesitter/livesitter/internal/log"
)

func contextWithRequestID(id string) context.Context {
	return log.ContextWithRequestID(context.Background(), id)
}
