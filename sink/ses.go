package sink

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/go-errors/errors"
	"go.uber.org/zap"
	"golang.org/x/text/transform"

	"github.com/xyster000/FirstSMTP"
	"github.com/xyster000/FirstSMTP/internal/spool"
	"github.com/xyster000/FirstSMTP/smtputil"
)

const maxSendRetries = 3
const baseRetryDelay = 1 * time.Second

// SendEmailAPI is the one SES v2 operation the relay uses. Tests plug in a
// mock through [NewSESRelayWithClient].
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures a [SESRelay]. When AccessKeyID and SecretAccessKey
// are empty the default AWS credential chain is used. MaxMemory bounds the
// in-memory part of the message spool, 0 selects [DefaultMaxMemory].
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
	MaxMemory       int
}

// SESRelay spools the wire-format message and, on finalize, relays it as a
// raw message through the AWS SES v2 API. The spooled bytes are de-stuffed
// and hard-wrapped to the RFC 5321 line limit before the API call, SES wants
// the bare message, not the protocol framing.
type SESRelay struct {
	sender    string
	client    SendEmailAPI
	log       *zap.Logger
	spool     *spool.Spool
	retryBase time.Duration
	finalized bool
}

var _ smtpdata.Sink = (*SESRelay)(nil)

// NewSESRelay creates a SESRelay from cfg, loading the AWS configuration for
// the configured region.
func NewSESRelay(ctx context.Context, cfg SESConfig, log *zap.Logger) (*SESRelay, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.WrapPrefix(err, "sink: load AWS config", 0)
	}
	r := NewSESRelayWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg), log)
	if cfg.MaxMemory > 0 {
		r.spool = spool.New(cfg.MaxMemory)
	}
	return r, nil
}

// NewSESRelayWithClient creates a SESRelay around an existing client, used
// for testing.
func NewSESRelayWithClient(sender string, client SendEmailAPI, log *zap.Logger) *SESRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &SESRelay{
		sender:    sender,
		client:    client,
		log:       log,
		spool:     spool.New(DefaultMaxMemory),
		retryBase: baseRetryDelay,
	}
}

// AddLine spools one wire-format line.
func (s *SESRelay) AddLine(line []byte) error {
	if s.finalized {
		return ErrFinalized
	}
	if _, err := s.spool.Write(line); err != nil {
		return errors.WrapPrefix(err, "sink: spool write", 0)
	}
	return nil
}

// AddLineEnd relays the spooled message and fires done with the send result.
// The API call happens on a separate goroutine, done may fire late.
func (s *SESRelay) AddLineEnd(done func(error)) {
	s.finalized = true
	go func() {
		done(s.send(context.Background()))
	}()
}

func (s *SESRelay) send(ctx context.Context) error {
	defer s.spool.Close()
	if _, err := s.spool.Seek(0, io.SeekStart); err != nil {
		return errors.WrapPrefix(err, "sink: spool finalize", 0)
	}
	raw, err := io.ReadAll(transform.NewReader(s.spool, transform.Chain(
		&smtputil.DotStrippingTransformer{},
		&smtputil.MaximumLineLengthTransformer{},
	)))
	if err != nil {
		return errors.WrapPrefix(err, "sink: prepare raw message", 0)
	}
	input := &sesv2.SendEmailInput{
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}
	if s.sender != "" {
		input.FromEmailAddress = aws.String(s.sender)
	}
	var lastErr error
	for attempt := 0; attempt <= maxSendRetries; attempt++ {
		if attempt > 0 {
			s.log.Debug("retrying SES send",
				zap.Int("attempt", attempt), zap.Error(lastErr))
			if err := sleepWithContext(ctx, s.backoffDelay(attempt)); err != nil {
				return errors.WrapPrefix(err, "sink: retry wait", 0)
			}
		}
		if _, err := s.client.SendEmail(ctx, input); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return errors.WrapPrefix(lastErr, "sink: SES send failed", 0)
}

// backoffDelay returns the exponential backoff delay for the given attempt.
func (s *SESRelay) backoffDelay(attempt int) time.Duration {
	delay := s.retryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for d or until ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
