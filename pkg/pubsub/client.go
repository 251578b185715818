// Package pubsub owns the Google Cloud Pub/Sub connection shared by the
// outbox relay and the tenant invalidation consumer.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client resolves short topic and subscription ids against the project and
// checks on startup and on Ping that they exist.
type Client struct {
	conn    *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	conn, err := pubsub.NewClient(ctx, project, credentialOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{conn: conn, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"gcp_project":   project,
			"topics":        topicIDs(cfg),
			"subscriptions": subscriptionIDs(cfg),
		}), "pubsub client initialized")
	}
	return c, nil
}

// credentialOptions prefers inline JSON, then a key file; with neither the
// client falls back to application default credentials.
func credentialOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func topicIDs(cfg config.PubSubConfig) []string {
	return compact(cfg.OrdersTopic, cfg.TenantsTopic)
}

func subscriptionIDs(cfg config.PubSubConfig) []string {
	return compact(cfg.OrdersSubscription, cfg.TenantsSubscription)
}

func compact(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Ping reports every missing topic and subscription at once.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errNotInitialized
	}
	topics := topicIDs(c.cfg)
	if len(topics) == 0 {
		return errors.New("no pubsub topics configured")
	}
	var errs error
	for _, id := range topics {
		_, err := c.conn.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topicName(id)})
		errs = multierr.Append(errs, describe("topic", id, err))
	}
	for _, id := range subscriptionIDs(c.cfg) {
		_, err := c.conn.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.subscriptionName(id)})
		errs = multierr.Append(errs, describe("subscription", id, err))
	}
	return errs
}

func describe(kind, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, id)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, id, err)
	}
}

// Publisher returns a handle for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	name := c.topicName(topic)
	if name == "" || c.conn == nil {
		return nil
	}
	return c.conn.Publisher(name)
}

func (c *Client) Subscriber(subscription string) *pubsub.Subscriber {
	name := c.subscriptionName(subscription)
	if name == "" || c.conn == nil {
		return nil
	}
	return c.conn.Subscriber(name)
}

// TenantsSubscription is this instance's feed of tenant lifecycle events.
func (c *Client) TenantsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscriber(c.cfg.TenantsSubscription)
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) topicName(id string) string {
	return c.resourceName("topics", id)
}

func (c *Client) subscriptionName(id string) string {
	return c.resourceName("subscriptions", id)
}

// resourceName expands an id to projects/<project>/<collection>/<id>. Full
// names pass through so other projects can be addressed.
func (c *Client) resourceName(collection, id string) string {
	if c == nil || c.project == "" {
		return ""
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+collection+"/") {
		return id
	}
	return "projects/" + c.project + "/" + collection + "/" + id
}
