package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/kinkeeper/internal/model"
)

// ErrExpired is returned when a push subscription is no longer valid (404/410).
var ErrExpired = errors.New("push subscription expired")

const defaultTTL = 12 * 60 * 60

// Payload is the JSON the service worker receives.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Service sends web push notifications signed with the server's VAPID keys.
type Service struct {
	publicKey  string
	privateKey string
	subject    string
	client     webpush.HTTPClient
}

type Option func(*Service)

// WithHTTPClient overrides the client used to reach push services.
func WithHTTPClient(c webpush.HTTPClient) Option {
	return func(s *Service) {
		s.client = c
	}
}

// NewService creates a push service. subject is the VAPID contact, usually
// a mailto: address.
func NewService(publicKey, privateKey, subject string, opts ...Option) *Service {
	s := &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    subject,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VAPIDPublicKey returns the key browsers need to subscribe.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             defaultTTL,
		Urgency:         webpush.UrgencyNormal,
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

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	privBytes := make([]byte, 32)
	key.D.FillBytes(privBytes)

	return base64.RawURLEncoding.EncodeToString(pubBytes), base64.RawURLEncoding.EncodeToString(privBytes), nil
}
