package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// SESConfig configures an SESRelay. Empty keys fall back to the default AWS
// credential chain.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// SESRelay submits already-rendered messages through the SES raw content API,
// so headers and attachments are identical to what the SMTP relay would send.
type SESRelay struct {
	client SESAPI
	logger *zap.Logger
}

func NewSESRelay(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESRelay, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESRelayWithClient(sesv2.NewFromConfig(awsCfg), logger), nil
}

func NewSESRelayWithClient(client SESAPI, logger *zap.Logger) *SESRelay {
	return &SESRelay{client: client, logger: logger}
}

func (r *SESRelay) Name() string {
	return "ses"
}

func (r *SESRelay) Send(ctx context.Context, from string, recipients []string, msg []byte) error {
	out, err := r.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: recipients},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: msg},
		},
	})
	if err != nil {
		return wrapSESError(err)
	}
	r.logger.Debug("Message handed to SES",
		zap.String("ses_message_id", aws.ToString(out.MessageId)),
		zap.Int("recipients", len(recipients)),
	)
	return nil
}

// Check verifies credentials and that sending is enabled on the account.
func (r *SESRelay) Check(ctx context.Context) error {
	out, err := r.client.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return wrapSESError(err)
	}
	if !out.SendingEnabled {
		return &stageError{stage: stageAuth, err: errors.New("sending is disabled for this SES account")}
	}
	return nil
}

func wrapSESError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidClientTokenId", "SignatureDoesNotMatch", "AccessDeniedException":
			return &stageError{stage: stageAuth, err: err}
		}
		return &stageError{stage: stageData, err: err}
	}
	return &stageError{stage: stageConnect, err: err}
}
