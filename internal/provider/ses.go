package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// SESClient sends through AWS SES v2 in a single region. Every call carries
// an explicit deadline; SDK defaults are never relied on.
type SESClient struct {
	client  *sesv2.Client
	region  string
	timeout time.Duration
}

// NewSESClient builds a region-bound SES client with static credentials.
// endpoint overrides the SDK's resolved endpoint when non-empty (used for
// sandbox and test stubs).
func NewSESClient(ctx context.Context, accessKey, secretKey string, region domain.Region, timeout time.Duration) (*SESClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region.Name),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for %s: %w", region.Name, err)
	}

	client := sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
		if region.Endpoint != "" {
			o.BaseEndpoint = aws.String(region.Endpoint)
		}
	})

	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SESClient{
		client:  client,
		region:  region.Name,
		timeout: timeout,
	}, nil
}

// Region returns the region name this client sends through.
func (c *SESClient) Region() string { return c.region }

// SDK exposes the underlying SES v2 client for metric queries that fall
// outside the dispatch surface.
func (c *SESClient) SDK() *sesv2.Client { return c.client }

// Send delivers one message. Failures come back as *SendError so the
// dispatcher can decide between suppression and failover.
func (c *SESClient) Send(ctx context.Context, msg *domain.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("tenant_id"), Value: aws.String(msg.TenantID)},
			{Name: aws.String("category"), Value: aws.String(string(msg.Category))},
		},
	}

	if msg.TextBody != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if msg.CampaignID != "" {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID),
		})
	}
	// Dedicated pools are addressed through their configuration set.
	if msg.IPPool != "" {
		input.ConfigurationSetName = aws.String(msg.IPPool)
	}
	for name, value := range msg.Headers {
		input.Content.Simple.Headers = append(input.Content.Simple.Headers, types.MessageHeader{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	result, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return "", classifySES(err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	return messageID, nil
}

// Quota returns the region's 24-hour send allowance from GetAccount.
func (c *SESClient) Quota(ctx context.Context) (Quota, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return Quota{}, fmt.Errorf("get account for %s: %w", c.region, err)
	}

	q := Quota{SendingEnabled: out.SendingEnabled}
	if out.SendQuota != nil {
		q.Max24HourSend = out.SendQuota.Max24HourSend
		q.SentLast24Hours = out.SendQuota.SentLast24Hours
	}
	return q, nil
}

// classifySES maps SES v2 API errors to failover decisions.
func classifySES(err error) *SendError {
	var (
		rejected  *types.MessageRejected
		suspended *types.AccountSuspendedException
		paused    *types.SendingPausedException
		mailFrom  *types.MailFromDomainNotVerifiedException
		badReq    *types.BadRequestException
		tooMany   *types.TooManyRequestsException
		limit     *types.LimitExceededException
	)

	switch {
	case errors.As(err, &rejected):
		return &SendError{Kind: KindRejected, Code: rejected.ErrorCode(), Err: err}
	case errors.As(err, &badReq):
		return &SendError{Kind: KindRejected, Code: badReq.ErrorCode(), Err: err}
	case errors.As(err, &tooMany):
		return &SendError{Kind: KindThrottled, Code: tooMany.ErrorCode(), Err: err}
	case errors.As(err, &limit):
		return &SendError{Kind: KindThrottled, Code: limit.ErrorCode(), Err: err}
	// Suspension, paused sending, and an unverified MAIL FROM domain are
	// sender-account conditions scoped to this region. The recipients are
	// not at fault; another region may still accept the message.
	case errors.As(err, &suspended):
		return &SendError{Kind: KindTransient, Code: suspended.ErrorCode(), Err: err}
	case errors.As(err, &paused):
		return &SendError{Kind: KindTransient, Code: paused.ErrorCode(), Err: err}
	case errors.As(err, &mailFrom):
		return &SendError{Kind: KindTransient, Code: mailFrom.ErrorCode(), Err: err}
	default:
		// Timeouts, connection resets, provider 5xx
		return &SendError{Kind: KindTransient, Err: err}
	}
}
