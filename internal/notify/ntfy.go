package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/livrasand/gitdeposit/internal/utils"
)

var ntfyClient = &http.Client{Timeout: 10 * time.Second}

// Event is a push notification for one repository.
type Event struct {
	Owner      string
	Repository string
	Pusher     string
	Status     string
}

// Notifier publishes events to an ntfy topic. A zero Topic disables it.
type Notifier struct {
	BaseURL string
	Topic   string
	client  *http.Client
}

func NewNotifier(baseURL, topic string) *Notifier {
	if baseURL == "" {
		baseURL = "https://ntfy.sh"
	}
	return &Notifier{BaseURL: strings.TrimSuffix(baseURL, "/"), Topic: topic, client: ntfyClient}
}

// Enabled reports whether a topic is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.Topic != ""
}

// TopicForRepository returns the topic events for owner/repository go to:
// {topic}-{owner}-{repository}.
func (n *Notifier) TopicForRepository(owner, repository string) string {
	return fmt.Sprintf("%s-%s-%s", n.Topic, owner, repository)
}

// Publish posts an event to the repository topic.
func (n *Notifier) Publish(ctx context.Context, e Event) error {
	if !n.Enabled() {
		return nil
	}
	url := fmt.Sprintf("%s/%s", n.BaseURL, n.TopicForRepository(e.Owner, e.Repository))

	message := fmt.Sprintf("%s pushed to %s/%s", e.Pusher, e.Owner, e.Repository)
	if e.Status != "" {
		message += "\n" + e.Status
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(message))
	if err != nil {
		return err
	}
	req.Header.Set("Title", fmt.Sprintf("Push to %s/%s", e.Owner, e.Repository))
	req.Header.Set("Tags", "package")
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy publish failed: status %s", resp.Status)
	}

	return nil
}

// PublishAsync publishes in the background and only logs failures.
func (n *Notifier) PublishAsync(e Event) {
	if !n.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ntfyClient.Timeout)
		defer cancel()
		if err := n.Publish(ctx, e); err != nil {
			utils.LogError("ntfy event for %s/%s: %v", e.Owner, e.Repository, err)
		}
	}()
}
