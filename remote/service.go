package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/logging"
)

// DefaultDisclaimer is appended by some hosted agents to every answer.
const DefaultDisclaimer = "\nAI tarafından oluşturulan içerik hatalı olabilir"

// ServiceOptions configures an AgentService.
type ServiceOptions struct {
	PollInterval time.Duration
	RunTimeout   time.Duration

	// TrimSuffixes are stripped from the end of every reply.
	TrimSuffixes []string

	Logger logging.Logger
}

// AgentService is a core.CompletionService that runs a hosted agent on the
// session thread. Hosted agents always answer; they never transfer.
type AgentService struct {
	client  *Client
	agentID string
	opts    ServiceOptions
}

// NewAgentService creates a service running agentID through client.
func NewAgentService(client *Client, agentID string, optFns ...func(o *ServiceOptions)) *AgentService {
	opts := ServiceOptions{
		PollInterval: 500 * time.Millisecond,
		RunTimeout:   2 * time.Minute,
		TrimSuffixes: []string{DefaultDisclaimer},
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}

	return &AgentService{client: client, agentID: agentID, opts: opts}
}

// AgentID returns the hosted agent id.
func (s *AgentService) AgentID() string { return s.agentID }

// Respond implements core.CompletionService. The session id must be a thread id.
func (s *AgentService) Respond(ctx context.Context, req core.Request) (core.Outcome, error) {
	if req.SessionID == "" {
		return nil, &core.BackendError{Agent: req.Agent, Message: "hosted agents need a thread session"}
	}
	threadID := req.SessionID

	if _, err := s.client.CreateMessage(ctx, threadID, core.RoleUser, req.Task); err != nil {
		return nil, backendError(req.Agent, "post message", err)
	}

	run, err := s.client.CreateRun(ctx, threadID, s.agentID)
	if err != nil {
		return nil, backendError(req.Agent, "create run", err)
	}
	if run.ThreadID == "" {
		run.ThreadID = threadID
	}

	run, err = s.wait(ctx, req.Agent, run)
	if err != nil {
		return nil, err
	}

	if run.Status != RunCompleted {
		msg := fmt.Sprintf("run %s %s", run.ID, run.Status)
		if run.LastError != nil {
			msg += ": " + run.LastError.Message
			if run.LastError.Code != "" {
				msg += " (" + run.LastError.Code + ")"
			}
		}
		return nil, &core.BackendError{Agent: req.Agent, Message: msg}
	}

	msgs, err := s.client.ListMessages(ctx, threadID, ListOptions{Order: "desc", Limit: 20})
	if err != nil {
		return nil, backendError(req.Agent, "list messages", err)
	}

	for _, m := range msgs {
		if m.Role != core.RoleAssistant {
			continue
		}
		return core.FinalReply{Text: s.clean(m.Text())}, nil
	}

	return nil, &core.BackendError{Agent: req.Agent, Message: fmt.Sprintf("run %s produced no assistant message", run.ID)}
}

func (s *AgentService) wait(ctx context.Context, agent string, run *Run) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	start := time.Now()
	for !run.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &core.BackendError{
					Agent:   agent,
					Message: fmt.Sprintf("run %s still %s after %s", run.ID, run.Status, s.opts.RunTimeout),
					Err:     ctx.Err(),
				}
			}
			return nil, &core.BackendError{Agent: agent, Message: "poll run: " + ctx.Err().Error(), Err: ctx.Err()}
		case <-ticker.C:
		}

		next, err := s.client.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return nil, backendError(agent, "poll run", err)
		}
		next.ThreadID = run.ThreadID
		run = next

		s.opts.Logger.Debug("remote.run.poll",
			"agent.name", agent,
			"run.id", run.ID,
			"run.status", string(run.Status),
			"duration.ms", time.Since(start).Milliseconds(),
		)
	}
	return run, nil
}

func (s *AgentService) clean(text string) string {
	for _, suffix := range s.opts.TrimSuffixes {
		if suffix == "" {
			continue
		}
		text = strings.TrimSuffix(strings.TrimRight(text, " \t\r\n"), suffix)
	}
	return strings.TrimSpace(text)
}

func backendError(agent, op string, err error) error {
	be := &core.BackendError{Agent: agent, Message: op + ": " + err.Error(), Err: err}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		be.Status = apiErr.StatusCode
	}
	return be
}
