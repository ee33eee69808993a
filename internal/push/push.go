// Package push delivers Web Push notifications to tenants' registered
// browsers using VAPID.
package push

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/tenantry/internal/model"
)

// ErrExpired is returned when the push service no longer knows a
// subscription (404 or 410).
var ErrExpired = errors.New("push subscription expired")

const ttlSeconds = 24 * 60 * 60

// Payload is what the service worker receives. Tag doubles as the Web Push
// topic, so a newer notification with the same tag replaces an undelivered
// older one.
type Payload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Urgent bool   `json:"-"`
}

// Subscriptions is the device registry a Service delivers to.
type Subscriptions interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	Forget(endpoint string) error
}

type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	subs       Subscriptions
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithHTTPClient(c *http.Client) Option { return func(s *Service) { s.httpClient = c } }

// NewService creates a push service. subscriber is the contact address
// push services may use, e.g. "mailto:ops@example.com". Without both keys
// the service is unconfigured and sends nothing.
func NewService(publicKey, privateKey, subscriber string, subs Subscriptions, opts ...Option) *Service {
	s := &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		subs:       subs,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Configured() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// VAPIDPublicKey is handed to browsers as the applicationServerKey.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send delivers payload to one subscription.
func (s *Service) Send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	urgency := webpush.UrgencyNormal
	if payload.Urgent {
		urgency = webpush.UrgencyHigh
	}
	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		Topic:           payload.Tag,
		Urgency:         urgency,
		TTL:             ttlSeconds,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// SendToUser delivers payload to every device the user registered and
// returns how many were reached. Subscriptions the push service reports as
// gone are removed.
func (s *Service) SendToUser(userID int64, payload Payload) (int, error) {
	if !s.Configured() {
		return 0, nil
	}
	subs, err := s.subs.ListByUser(userID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	sent := 0
	for i := range subs {
		sub := &subs[i]
		err := s.Send(sub, payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrExpired):
			s.logger.Info("removing expired push subscription", "user_id", userID, "subscription_id", sub.ID)
			if err := s.subs.Forget(sub.Endpoint); err != nil {
				s.logger.Error("forget expired push subscription", "error", err)
			}
		default:
			s.logger.Warn("push delivery failed", "user_id", userID, "subscription_id", sub.ID, "error", err)
		}
	}
	return sent, nil
}

// GenerateVAPIDKeys returns a fresh base64url P-256 key pair for the
// TENANTRY_VAPID_* settings.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
