package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Sender delivers notifications through the Gmail API as the authorised account
type Sender struct {
	gmailService *gmail.Service
	from         string
	logger       logger.Logger
}

// NewSender creates a Gmail sender authorised by tokenSource
func NewSender(ctx context.Context, tokenSource oauth2.TokenSource, from string, logger logger.Logger) (*Sender, error) {
	return NewSenderWithOptions(ctx, from, logger, option.WithTokenSource(tokenSource))
}

// NewSenderWithOptions creates a Gmail sender with explicit client options
func NewSenderWithOptions(ctx context.Context, from string, logger logger.Logger, opts ...option.ClientOption) (*Sender, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &Sender{
		gmailService: service,
		from:         from,
		logger:       logger,
	}, nil
}

var _ repository.EmailSender = (*Sender)(nil)

// Send submits the message and returns the Gmail message id
func (s *Sender) Send(ctx context.Context, email entity.OutboundEmail) (string, error) {
	raw := base64.URLEncoding.EncodeToString(buildMIME(s.from, email))

	msg, err := s.gmailService.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}

	s.logger.Debug("Gmail accepted message", "messageId", msg.Id)
	return msg.Id, nil
}

func buildMIME(from string, email entity.OutboundEmail) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + email.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", email.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	body := base64.StdEncoding.EncodeToString([]byte(email.HTML))
	for len(body) > 76 {
		b.WriteString(body[:76] + "\r\n")
		body = body[76:]
	}
	b.WriteString(body)
	return []byte(strings.TrimRight(b.String(), "\r\n") + "\r\n")
}
