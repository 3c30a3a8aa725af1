package ses

import (
	"context"
	"fmt"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"
	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the subset of the SES client used for delivery
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Sender delivers notifications through Amazon SES
type Sender struct {
	client SESService
	from   string
	logger logger.Logger
}

// NewSender creates a sender backed by the default AWS credential chain
func NewSender(ctx context.Context, region, from string, logger logger.Logger) (*Sender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSenderWithClient(ses.NewFromConfig(awsCfg), from, logger), nil
}

// NewSenderWithClient creates a sender around an existing SES client
func NewSenderWithClient(client SESService, from string, logger logger.Logger) *Sender {
	return &Sender{
		client: client,
		from:   from,
		logger: logger,
	}
}

var _ repository.EmailSender = (*Sender)(nil)

// Send submits the message and returns the SES message id
func (s *Sender) Send(ctx context.Context, email entity.OutboundEmail) (string, error) {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{email.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(email.HTML), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(s.from),
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}

	id := aws.ToString(out.MessageId)
	s.logger.Debug("SES accepted message", "messageId", id)
	return id, nil
}
