package activitypub

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
	"github.com/google/uuid"
)

// Federation carries everything the federation core needs: instance
// settings, the store and the transport. It is built once per process and
// passed to every operation.
type Federation struct {
	settings  *util.Settings
	store     domain.Store
	transport Transport
}

func New(settings *util.Settings, store domain.Store, transport Transport) *Federation {
	return &Federation{
		settings:  settings,
		store:     store,
		transport: transport,
	}
}

func (f *Federation) Settings() *util.Settings {
	return f.settings
}

// RequestContext is the state of one inbound activity (or one outbound
// resolution): the remaining fetch budget, objects already resolved in this
// chain and the identifiers currently being resolved. It must not be shared
// between goroutines.
type RequestContext struct {
	fed         *Federation
	store       domain.Store
	budget      int
	fetches     int
	resolved    map[string]any
	inFlight    map[string]bool
	afterCommit []func(context.Context) error
}

// NewRequestContext starts a resolution chain with the configured fetch budget.
func (f *Federation) NewRequestContext() *RequestContext {
	return f.newRequestContext(f.settings.FetchBudget)
}

func (f *Federation) newRequestContext(budget int) *RequestContext {
	return &RequestContext{
		fed:      f,
		store:    f.store,
		budget:   budget,
		resolved: make(map[string]any),
		inFlight: make(map[string]bool),
	}
}

// RemainingBudget is the number of remote fetches this chain may still perform.
func (rc *RequestContext) RemainingBudget() int { return rc.budget }

// Fetches is the number of remote fetches this chain performed.
func (rc *RequestContext) Fetches() int { return rc.fetches }

func (rc *RequestContext) settings() *util.Settings { return rc.fed.settings }

// checkpoint is the resolution state of a RequestContext before receive
// starts writing.
type checkpoint struct {
	budget   int
	fetches  int
	resolved map[string]any
}

func (rc *RequestContext) checkpoint() checkpoint {
	return checkpoint{budget: rc.budget, fetches: rc.fetches, resolved: maps.Clone(rc.resolved)}
}

// restore drops everything a rolled back attempt left behind: entities it
// resolved (their rows no longer exist) and the actions it registered.
func (rc *RequestContext) restore(cp checkpoint) {
	rc.budget = cp.budget
	rc.fetches = cp.fetches
	rc.resolved = maps.Clone(cp.resolved)
	rc.inFlight = make(map[string]bool)
	rc.afterCommit = nil
}

// onCommit registers an action that runs only after receive has committed.
func (rc *RequestContext) onCommit(fn func(context.Context) error) {
	rc.afterCommit = append(rc.afterCommit, fn)
}

func (rc *RequestContext) runAfterCommit(ctx context.Context) {
	for _, fn := range rc.afterCommit {
		if err := fn(ctx); err != nil {
			log.Warnf("Federation: post-commit action failed: %v", err)
		}
	}
	rc.afterCommit = nil
}

// Local identifiers.

func (f *Federation) PersonURL(name string) string {
	return fmt.Sprintf("%s/u/%s", f.settings.ProtocolAndHostname(), name)
}

func (f *Federation) CommunityURL(name string) string {
	return fmt.Sprintf("%s/c/%s", f.settings.ProtocolAndHostname(), name)
}

func (f *Federation) FollowersURL(communityName string) string {
	return f.CommunityURL(communityName) + "/followers"
}

func (f *Federation) PostURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/post/%s", f.settings.ProtocolAndHostname(), id)
}

func (f *Federation) CommentURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/comment/%s", f.settings.ProtocolAndHostname(), id)
}

func (f *Federation) PrivateMessageURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/private_message/%s", f.settings.ProtocolAndHostname(), id)
}

func (f *Federation) SharedInboxURL() string {
	return f.settings.ProtocolAndHostname() + "/inbox"
}

// InboxURL returns the personal inbox of a local actor.
func InboxURL(actorID string) string {
	return actorID + "/inbox"
}

func OutboxURL(actorID string) string {
	return actorID + "/outbox"
}

// KeyID is the identifier of an actor's main key.
func KeyID(actorID string) string {
	return actorID + "#main-key"
}

// generateActivityID builds {proto://host}/activities/{kind}/{uuid}.
func (f *Federation) generateActivityID(kind string) string {
	return fmt.Sprintf("%s/activities/%s/%s", f.settings.ProtocolAndHostname(), strings.ToLower(kind), uuid.New())
}

// isLocalURL reports whether id lives on this instance.
func (f *Federation) isLocalURL(id string) bool {
	u, err := url.Parse(id)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, f.settings.Hostname)
}

// checkIsApubIDValid enforces the instance's identifier policy: the scheme
// must match the configured protocol, blocked hosts are refused and a
// non-empty allowlist admits only listed hosts. The own host is always valid.
func (f *Federation) checkIsApubIDValid(id string) error {
	u, err := url.Parse(id)
	if err != nil || u.Host == "" {
		return validationError("check id", "invalid identifier %q", id)
	}
	if u.Scheme != f.settings.Protocol() {
		return validationError("check id", "invalid protocol scheme in %s", id)
	}
	host := strings.ToLower(u.Host)
	if host == strings.ToLower(f.settings.Hostname) {
		return nil
	}
	if slices.ContainsFunc(f.settings.BlockedInstances, func(b string) bool { return strings.EqualFold(b, host) }) {
		return validationError("check id", "instance %s is blocked", host)
	}
	if len(f.settings.AllowedInstances) > 0 &&
		!slices.ContainsFunc(f.settings.AllowedInstances, func(a string) bool { return strings.EqualFold(a, host) }) {
		return validationError("check id", "instance %s is not allowed", host)
	}
	return nil
}

func hostOf(id string) string {
	u, err := url.Parse(id)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
