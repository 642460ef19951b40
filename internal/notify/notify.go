// Package notify publishes user-facing notification events to the
// message broker. Front-ends subscribe to the feed and render the
// events as toasts.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thusconnect/apiserver/internal/mq"
	"github.com/thusconnect/apiserver/types"
)

// Event kinds emitted by the auth flow.
const (
	KindLoginSucceeded    = "login_succeeded"
	KindLoginFailed       = "login_failed"
	KindRegisterSucceeded = "register_succeeded"
	KindLogout            = "logout"
)

// Variants control how the front-end styles the toast.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Event is the payload published for each notification.
type Event struct {
	Kind       string     `json:"kind"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Variant    string     `json:"variant"`
	IdentityID string     `json:"identity_id,omitempty"`
	Role       types.Role `json:"role,omitempty"`
	At         time.Time  `json:"at"`
}

// Notifier publishes notification events to a channel on the broker.
type Notifier struct {
	mq      *mq.MQ
	channel string
}

// New constructs a Notifier publishing to the named channel.
func New(queue *mq.MQ, channel string) *Notifier {
	return &Notifier{mq: queue, channel: channel}
}

// LoginSucceeded announces a successful login.
func (n *Notifier) LoginSucceeded(ctx context.Context, identity types.Identity) {
	n.publish(ctx, Event{
		Kind:       KindLoginSucceeded,
		Title:      "Connexion réussie",
		Message:    fmt.Sprintf("Bienvenue, %s!", identity.Name),
		Variant:    VariantDefault,
		IdentityID: identity.ID,
		Role:       identity.Role,
	})
}

// LoginFailed announces a failed login attempt. The message is generic
// on purpose; no credential detail leaves the server.
func (n *Notifier) LoginFailed(ctx context.Context, role types.Role) {
	n.publish(ctx, Event{
		Kind:    KindLoginFailed,
		Title:   "Erreur de connexion",
		Message: "Identifiants invalides",
		Variant: VariantDestructive,
		Role:    role,
	})
}

// RegisterSucceeded announces a completed registration.
func (n *Notifier) RegisterSucceeded(ctx context.Context, identity types.Identity) {
	n.publish(ctx, Event{
		Kind:       KindRegisterSucceeded,
		Title:      "Inscription réussie",
		Message:    fmt.Sprintf("Bienvenue, %s!", identity.Name),
		Variant:    VariantDefault,
		IdentityID: identity.ID,
		Role:       identity.Role,
	})
}

// LoggedOut announces a logout.
func (n *Notifier) LoggedOut(ctx context.Context, identity types.Identity) {
	n.publish(ctx, Event{
		Kind:       KindLogout,
		Title:      "Déconnexion réussie",
		Message:    "A bientôt!",
		Variant:    VariantDefault,
		IdentityID: identity.ID,
		Role:       identity.Role,
	})
}

// publish is best-effort: a broker outage must not fail the auth
// operation that triggered the event.
func (n *Notifier) publish(ctx context.Context, event Event) {
	if n == nil || n.mq == nil {
		return
	}
	event.At = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_, _ = n.mq.Publish(ctx, n.channel, data, map[string]string{"kind": event.Kind})
}
