package repository

import (
	"context"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
)

// EmailSender delivers one rendered email and returns the provider's message id
type EmailSender interface {
	Send(ctx context.Context, email entity.OutboundEmail) (string, error)
}
