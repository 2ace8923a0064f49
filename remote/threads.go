package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentrouter/core"
)

// ThreadStore uses backend threads as sessions. It implements
// core.ConversationStore and core.HistoryStore, so local agents and hosted
// agents share one transcript per session.
type ThreadStore struct {
	client *Client

	// PageSize is the number of messages requested per listing call. 0 uses
	// the backend default.
	PageSize int
}

// NewThreadStore creates a store backed by client.
func NewThreadStore(client *Client) *ThreadStore {
	return &ThreadStore{client: client, PageSize: 100}
}

// Create creates a new thread and returns its id.
func (s *ThreadStore) Create(ctx context.Context) (string, error) {
	t, err := s.client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if t.ID == "" {
		return "", errors.New("create thread: backend returned an empty id")
	}
	return t.ID, nil
}

// Exists reports whether the thread is known to the backend.
func (s *ThreadStore) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := s.client.GetThread(ctx, id); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get thread: %w", err)
	}
	return true, nil
}

// Append posts msgs to the thread in order.
func (s *ThreadStore) Append(ctx context.Context, id string, msgs ...core.Message) error {
	for _, m := range msgs {
		role := m.Role
		if role != core.RoleAssistant {
			role = core.RoleUser
		}
		if _, err := s.client.CreateMessage(ctx, id, role, m.Text); err != nil {
			return fmt.Errorf("post message: %w", err)
		}
	}
	return nil
}

// Messages returns the whole thread transcript, oldest first, following the
// backend cursor until the last page.
func (s *ThreadStore) Messages(ctx context.Context, id string) ([]core.Message, error) {
	var (
		msgs  []core.Message
		after string
	)
	for {
		page, err := s.client.ListMessagePage(ctx, id, ListOptions{Order: "asc", Limit: s.PageSize, After: after})
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}

		for _, m := range page.Data {
			msgs = append(msgs, core.Message{
				Role:      m.Role,
				Author:    m.AgentID,
				Text:      m.Text(),
				CreatedAt: time.Unix(m.CreatedAt, 0).UTC(),
			})
		}

		if !page.HasMore || len(page.Data) == 0 {
			return msgs, nil
		}
		if page.LastID == after {
			return nil, fmt.Errorf("list messages: cursor %q did not advance", after)
		}
		after = page.LastID
	}
}
