// Package firebase builds the Firebase app shared by the Firestore directory
// store and the FCM push sender.
package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"github.com/comaslimpio/notification-api/internal/config"
)

// ErrNoCredentials is returned when neither inline nor file credentials are configured.
var ErrNoCredentials = errors.New("firebase credentials not configured")

// App wraps an initialized Firebase app.
type App struct {
	app *fb.App
}

// NewApp initializes Firebase from the service account in cfg.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*App, error) {
	opts, err := ClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	return &App{app: app}, nil
}

// Messaging returns an FCM client.
func (a *App) Messaging(ctx context.Context) (*messaging.Client, error) {
	client, err := a.app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("create messaging client: %w", err)
	}
	return client, nil
}

// Firestore returns a Firestore client. The caller closes it.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := a.app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// ClientOptions returns the Google API client options for cfg. A credentials
// file takes precedence over inline service account fields.
func ClientOptions(cfg config.FirebaseConfig) ([]option.ClientOption, error) {
	if cfg.CredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, nil
	}
	if cfg.ClientEmail == "" || cfg.PrivateKey == "" {
		return nil, ErrNoCredentials
	}

	creds, err := ServiceAccountJSON(cfg)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithCredentialsJSON(creds)}, nil
}

// ServiceAccountJSON renders inline service account fields as a credentials document.
func ServiceAccountJSON(cfg config.FirebaseConfig) ([]byte, error) {
	creds, err := json.Marshal(serviceAccount{
		Type:        "service_account",
		ProjectID:   cfg.ProjectID,
		PrivateKey:  cfg.PrivateKey,
		ClientEmail: cfg.ClientEmail,
		TokenURI:    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("encode service account: %w", err)
	}
	return creds, nil
}
