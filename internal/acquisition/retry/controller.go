// Package retry owns the per-task attempt state machine.
//
// A task moves pending -> attempting -> {succeeded | retrying | failed} and
// retrying -> attempting. The controller is the only writer of a task's
// status and attempt count, and it decides after every attempt whether to
// retry, whether to demote the proxy, and how long to cool down.
package retry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/farewatch/internal/acquisition/metrics"
	"github.com/vietddude/farewatch/internal/core/config"
	"github.com/vietddude/farewatch/internal/core/domain"
)

// Policy defines retry behavior.
type Policy struct {
	MaxAttempts       int
	RetryCooldown     config.Window
	ChallengeCooldown config.Window
	EmptyPolicy       config.EmptyPolicy
}

// PolicyFromConfig builds a Policy from scheduler settings.
func PolicyFromConfig(cfg config.SchedulerConfig) Policy {
	return Policy{
		MaxAttempts:       cfg.MaxAttempts,
		RetryCooldown:     cfg.RetryCooldown,
		ChallengeCooldown: cfg.ChallengeCooldown,
		EmptyPolicy:       cfg.EmptyPolicy,
	}
}

// Blacklister demotes a proxy.
type Blacklister interface {
	Blacklist(address string)
}

// Action is what the scheduler should do next with a task.
type Action int

const (
	ActionSucceed Action = iota
	ActionRetry
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionSucceed:
		return "succeed"
	case ActionRetry:
		return "retry"
	default:
		return "fail"
	}
}

// Decision is the controller's verdict on one attempt.
type Decision struct {
	Action      Action
	Class       Class
	Cooldown    time.Duration // wait before the next attempt, ActionRetry only
	Blacklisted bool
}

// Controller applies a Policy to attempts.
type Controller struct {
	policy  Policy
	proxies Blacklister
	log     *slog.Logger
}

// NewController creates a controller that demotes proxies through proxies.
func NewController(policy Policy, proxies Blacklister) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Controller{
		policy:  policy,
		proxies: proxies,
		log:     slog.Default().With("component", "retry"),
	}
}

// MaxAttempts returns the attempt ceiling.
func (c *Controller) MaxAttempts() int { return c.policy.MaxAttempts }

// Begin moves a task into attempting and counts the attempt.
func (c *Controller) Begin(t *domain.Task) error {
	if !domain.CanTransition(t.Status, domain.TaskAttempting) {
		return fmt.Errorf("%w: %s is %s", domain.ErrIllegalTransition, t.Key, t.Status)
	}
	if t.AttemptCount >= c.policy.MaxAttempts {
		return fmt.Errorf("%w: %s already used %d attempts", domain.ErrIllegalTransition, t.Key, t.AttemptCount)
	}

	t.Status = domain.TaskAttempting
	t.AttemptCount++
	return nil
}

// Accepts reports whether Record would mark the attempt a success. The
// scheduler persists the result before recording such attempts.
func (c *Controller) Accepts(a domain.Attempt) bool {
	switch a.Outcome {
	case domain.OutcomeSuccess:
		return a.Records > 0 || c.policy.EmptyPolicy == config.EmptyAccept
	case domain.OutcomeEmpty:
		return c.policy.EmptyPolicy == config.EmptyAccept
	default:
		return false
	}
}

// Record applies the outcome of the attempt in progress and returns what to
// do next. The task must be attempting.
func (c *Controller) Record(t *domain.Task, a domain.Attempt) (Decision, error) {
	if t.Status != domain.TaskAttempting {
		return Decision{}, fmt.Errorf("%w: %s is %s, not attempting", domain.ErrIllegalTransition, t.Key, t.Status)
	}

	metrics.AttemptsTotal.WithLabelValues(string(a.Outcome)).Inc()
	if a.Duration > 0 {
		metrics.AttemptDuration.WithLabelValues(string(a.Outcome)).Observe(a.Duration.Seconds())
	}

	t.LastOutcome = a.Outcome
	t.LastProxy = a.Proxy
	t.LastError = ""
	if a.Err != nil {
		t.LastError = a.Err.Error()
	}

	outcome := a.Outcome
	if outcome == domain.OutcomeSuccess && a.Records == 0 {
		outcome = domain.OutcomeEmpty
	}

	var d Decision
	switch outcome {
	case domain.OutcomeSuccess:
		d = c.succeed(t)

	case domain.OutcomeEmpty:
		d.Class = ClassExtractionEmpty
		switch c.policy.EmptyPolicy {
		case config.EmptyAccept:
			d = c.succeed(t)
			d.Class = ClassExtractionEmpty
		case config.EmptyBlacklist:
			d.Blacklisted = c.blacklist(a.Proxy)
			c.retryOrFail(t, &d, c.policy.RetryCooldown)
		default:
			c.retryOrFail(t, &d, c.policy.RetryCooldown)
		}

	case domain.OutcomeChallenge:
		d.Class = ClassChallenge
		d.Blacklisted = c.blacklist(a.Proxy)
		c.retryOrFail(t, &d, c.policy.ChallengeCooldown)

	case domain.OutcomeTimeout:
		d.Class = ClassTransientNetwork
		d.Blacklisted = c.blacklist(a.Proxy)
		c.retryOrFail(t, &d, c.policy.RetryCooldown)

	case domain.OutcomeExhausted:
		d.Class = ClassResourceExhausted
		d.Action = ActionFail
		t.Status = domain.TaskFailed

	default:
		d.Class = ClassifyError(a.Err)
		switch d.Class {
		case ClassResourceExhausted:
			d.Action = ActionFail
			t.Status = domain.TaskFailed
		case ClassChallenge:
			d.Blacklisted = c.blacklist(a.Proxy)
			c.retryOrFail(t, &d, c.policy.ChallengeCooldown)
		case ClassTransientNetwork:
			d.Blacklisted = c.blacklist(a.Proxy)
			c.retryOrFail(t, &d, c.policy.RetryCooldown)
		default:
			c.retryOrFail(t, &d, c.policy.RetryCooldown)
		}
	}

	c.logDecision(t, a, d)
	return d, nil
}

func (c *Controller) succeed(t *domain.Task) Decision {
	t.Status = domain.TaskSucceeded
	return Decision{Action: ActionSucceed, Class: ClassNone}
}

func (c *Controller) retryOrFail(t *domain.Task, d *Decision, cooldown config.Window) {
	if t.AttemptCount >= c.policy.MaxAttempts {
		d.Action = ActionFail
		t.Status = domain.TaskFailed
		return
	}
	d.Action = ActionRetry
	d.Cooldown = cooldown.Pick()
	t.Status = domain.TaskRetrying
}

func (c *Controller) blacklist(proxy string) bool {
	if proxy == "" || c.proxies == nil {
		return false
	}
	c.proxies.Blacklist(proxy)
	return true
}

func (c *Controller) logDecision(t *domain.Task, a domain.Attempt, d Decision) {
	attrs := []any{
		"task", t.Key.String(),
		"attempt", t.AttemptCount,
		"max_attempts", c.policy.MaxAttempts,
		"outcome", a.Outcome,
		"proxy", a.Proxy,
	}

	switch d.Action {
	case ActionSucceed:
		c.log.Info("Attempt succeeded", append(attrs, "records", a.Records)...)
	case ActionRetry:
		c.log.Warn("Attempt failed, retrying",
			append(attrs, "class", d.Class.String(), "blacklisted", d.Blacklisted,
				"cooldown", d.Cooldown.Round(time.Second), "error", t.LastError)...)
	case ActionFail:
		if d.Class == ClassResourceExhausted {
			c.log.Error("No proxy available, abandoning task", attrs...)
			return
		}
		c.log.Error("Task failed after final attempt",
			append(attrs, "class", d.Class.String(), "error", t.LastError)...)
	}
}
