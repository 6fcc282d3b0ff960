package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/service/sending"
)

// sesAPI is the part of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends email through Amazon SES v2.
type SESSender struct {
	client sesAPI
	from   string
	log    *zap.Logger
}

// NewSESSender builds an SES client from cfg. Static keys are used when
// both are set, otherwise the default AWS credential chain.
func NewSESSender(ctx context.Context, cfg config.EmailConfig, log *zap.Logger) (*SESSender, error) {
	region := cfg.SES.Region
	if region == "" {
		region = "eu-west-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SES.AccessKey, cfg.SES.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSESSender(sesv2.NewFromConfig(awsCfg), formatFrom(cfg.FromName, cfg.From), log), nil
}

func newSESSender(client sesAPI, from string, log *zap.Logger) *SESSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &SESSender{client: client, from: from, log: log}
}

// SendEmail delivers one HTML message.
func (s *SESSender) SendEmail(ctx context.Context, to, subject, html string) domain.SendResult {
	if s.from == "" {
		return sending.Failed(errors.New("SES sender address not configured"))
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		s.log.Warn("ses send failed", logger.Email("to", to), zap.Error(err))
		return sending.Failed(err)
	}
	return domain.SendResult{Success: true, ProviderID: aws.ToString(out.MessageId)}
}
