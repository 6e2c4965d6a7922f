package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/dailycart-backend/pkg/config"
	"github.com/angelmondragon/dailycart-backend/pkg/logger"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub notifications topic is required")
)

// NewClient creates a Pub/Sub v2 client and checks that the notifications topic exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.NotificationsTopic) == "" {
		return nil, errNoTopic
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     psClient,
		projectID:  gcp.ProjectID,
		cfg:        cfg,
		publishers: make(map[string]*pubsub.Publisher),
	}
	if err := c.ensureTopicExists(ctx, cfg.NotificationsTopic); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", cfg.NotificationsTopic), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) ensureTopicExists(ctx context.Context, name string) error {
	fullName := topicResourceName(c.projectID, name)
	if fullName == "" {
		return fmt.Errorf("topic %q not configured", name)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("topic %q does not exist", name)
		}
		return fmt.Errorf("checking topic %q: %w", name, err)
	}
	return nil
}

// Publisher returns a cached publisher for the topic ID or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := topicResourceName(c.projectID, name)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[fullName]; ok {
		return p
	}
	p := c.client.Publisher(fullName)
	c.publishers[fullName] = p
	return p
}

// NotificationsPublisher returns the publisher for customer-facing order notifications.
func (c *Client) NotificationsPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.NotificationsTopic)
}

// Ping verifies Pub/Sub connectivity by looking up the notifications topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.ensureTopicExists(ctx, c.cfg.NotificationsTopic)
}

// Close flushes pending publishes and releases the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}
