// Package pubsub wraps the Pub/Sub v2 client with the storefront's topic and
// subscription names and refuses to start when any of them is missing.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
	// lookup fetches one resource by full name; swapped in tests.
	lookup func(ctx context.Context, kind, fullName string) error
}

// NewClient dials Pub/Sub and checks every configured topic and subscription exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	ps, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{ps: ps, project: project, cfg: cfg}
	c.lookup = c.adminLookup
	if err := c.verify(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        TopicNames(cfg),
			"subscriptions": SubscriptionNames(cfg),
		}), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions prefers inline credentials, then a credentials file, then ADC.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// TopicNames lists the distinct non-empty configured topics.
func TopicNames(cfg config.PubSubConfig) []string {
	return compact(cfg.OrdersTopic, cfg.CatalogTopic)
}

// SubscriptionNames lists the configured subscriptions.
func SubscriptionNames(cfg config.PubSubConfig) []string {
	return compact(cfg.OrdersSubscription)
}

func compact(values ...string) []string {
	out := []string{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func (c *Client) verify(ctx context.Context) error {
	topics := TopicNames(c.cfg)
	if len(topics) == 0 {
		return errNoTopics
	}
	check := func(kind, name string) error {
		full := qualify(c.project, kind, name)
		if full == "" {
			return fmt.Errorf("%s %q not configured", kind, name)
		}
		err := c.lookup(ctx, kind, full)
		switch {
		case err == nil:
			return nil
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(kind, "s"), name)
		default:
			return fmt.Errorf("checking %s %q: %w", strings.TrimSuffix(kind, "s"), name, err)
		}
	}
	for _, name := range topics {
		if err := check(kindTopic, name); err != nil {
			return err
		}
	}
	for _, name := range SubscriptionNames(c.cfg) {
		if err := check(kindSubscription, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) adminLookup(ctx context.Context, kind, fullName string) error {
	var err error
	if kind == kindTopic {
		_, err = c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	} else {
		_, err = c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	}
	return err
}

// Subscription returns a receiver for name, an ID or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	if full := qualify(c.project, kindSubscription, name); full != "" {
		return c.ps.Subscriber(full)
	}
	return nil
}

func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.OrdersSubscription)
}

// Publisher returns a batching publisher for topic; callers Stop it on shutdown.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	if full := qualify(c.project, kindTopic, topic); full != "" {
		return c.ps.Publisher(full)
	}
	return nil
}

// Ping re-runs the startup existence checks.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// qualify expands a short name to projects/<project>/<kind>/<name>. Names
// that are already fully qualified pass through.
func qualify(project, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
