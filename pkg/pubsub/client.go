package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lodgetix/ticket-inventory/pkg/config"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errSubscriptionRequired = errors.New("registration change subscription is required")
	errNotInitialized       = errors.New("pubsub client not initialized")
)

// Client owns the change feed subscription of the inventory worker.
type Client struct {
	client       *pubsub.Client
	subscription string
	topic        string
	cfg          config.PubSubConfig
}

// NewClient dials Pub/Sub and verifies that the registration change
// subscription exists and is attached to the configured topic.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	subscription := resourceName(project, "subscriptions", cfg.RegistrationChangesSubscription)
	if subscription == "" {
		return nil, errSubscriptionRequired
	}

	psClient, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:       psClient,
		subscription: subscription,
		topic:        resourceName(project, "topics", cfg.RegistrationChangesTopic),
		cfg:          cfg,
	}

	if err := c.verifySubscription(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"subscription": c.subscription, "topic": c.topic})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	return opts
}

func (c *Client) verifySubscription(ctx context.Context) error {
	sub, err := c.client.SubscriptionAdminClient.GetSubscription(
		ctx,
		&pubsubpb.GetSubscriptionRequest{Subscription: c.subscription},
	)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("subscription %q does not exist", c.subscription)
		}
		return fmt.Errorf("checking subscription %q: %w", c.subscription, err)
	}
	return checkTopic(c.subscription, sub.GetTopic(), c.topic)
}

// checkTopic fails when the subscription feeds from a different topic than
// configured. An empty expectation accepts any topic.
func checkTopic(subscription, actual, expected string) error {
	if expected == "" || actual == expected {
		return nil
	}
	return fmt.Errorf("subscription %q is attached to %q, expected %q", subscription, actual, expected)
}

// RegistrationChangesSubscription returns the change feed subscriber with
// flow control applied.
func (c *Client) RegistrationChangesSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	sub := c.client.Subscriber(c.subscription)
	applyReceiveSettings(&sub.ReceiveSettings, c.cfg)
	return sub
}

func applyReceiveSettings(settings *pubsub.ReceiveSettings, cfg config.PubSubConfig) {
	if cfg.MaxOutstandingMessages > 0 {
		settings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	}
	if cfg.NumGoroutines > 0 {
		settings.NumGoroutines = cfg.NumGoroutines
	}
}

// Ping re-checks the subscription.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verifySubscription(ctx)
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare id into projects/<project>/<collection>/<id>.
// Already qualified names pass through.
func resourceName(project, collection, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+collection+"/") {
		return n
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, collection, n)
}
