package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/dailycart-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project, name, want string
	}{
		{"dc-prod", "dc-order-notifications", "projects/dc-prod/topics/dc-order-notifications"},
		{"dc-prod", " projects/other/topics/t ", "projects/other/topics/t"},
		{"", "dc-order-notifications", ""},
		{"dc-prod", "  ", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{NotificationsTopic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); err != errNoTopic {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}
