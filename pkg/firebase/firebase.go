// Package firebase bootstraps the Admin SDK clients the backend delegates to:
// realtime database, storage bucket and cloud messaging.
package firebase

import (
	"context"
	"fmt"
	"log"
	"os"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"appointment-system/pkg/config"
)

// Database streaming scopes for the REST listener token source.
var databaseScopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/firebase.database",
}

// Services bundles the initialized backend clients.
type Services struct {
	Database    *db.Client
	Bucket      *storage.BucketHandle
	Messaging   *messaging.Client
	TokenSource oauth2.TokenSource
}

// New initializes the Firebase app and its service clients from config.
func New(ctx context.Context, cfg *config.Config) (*Services, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentials))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.FirebaseProjectID,
		DatabaseURL:   cfg.FirebaseDatabaseURL,
		StorageBucket: cfg.FirebaseStorageBucket,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	database, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}

	storageClient, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage client: %w", err)
	}
	bucket, err := storageClient.DefaultBucket()
	if err != nil {
		return nil, fmt.Errorf("failed to get storage bucket: %w", err)
	}

	// Messaging is optional; push delivery is disabled without it.
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		log.Printf("[Firebase] Messaging unavailable, push delivery disabled: %v", err)
		messagingClient = nil
	}

	tokenSource, err := streamTokenSource(ctx, cfg.FirebaseCredentials)
	if err != nil {
		return nil, err
	}

	log.Println("[Firebase] Admin SDK clients initialized")
	return &Services{
		Database:    database,
		Bucket:      bucket,
		Messaging:   messagingClient,
		TokenSource: tokenSource,
	}, nil
}

func streamTokenSource(ctx context.Context, credentialsFile string) (oauth2.TokenSource, error) {
	if credentialsFile == "" {
		ts, err := google.DefaultTokenSource(ctx, databaseScopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to build default token source: %w", err)
		}
		return ts, nil
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, databaseScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return creds.TokenSource, nil
}
