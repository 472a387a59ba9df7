package rtdb

import (
	"context"
	"encoding/json"
	"fmt"

	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2"
)

// Client implements Store against a Firebase Realtime Database.
type Client struct {
	db       *db.Client
	streamer *Streamer
}

// NewClient wraps an Admin SDK database client. databaseURL and tokenSource
// feed the streaming endpoint used by Subscribe.
func NewClient(dbClient *db.Client, databaseURL string, tokenSource oauth2.TokenSource) *Client {
	return &Client{
		db:       dbClient,
		streamer: NewStreamer(databaseURL, tokenSource),
	}
}

func (c *Client) Get(ctx context.Context, path string, v any) error {
	if err := c.db.NewRef(path).Get(ctx, v); err != nil {
		return NewPersistenceError("get", path, KindInternal, err)
	}
	return nil
}

func (c *Client) Set(ctx context.Context, path string, v any) error {
	if err := c.db.NewRef(path).Set(ctx, v); err != nil {
		return NewPersistenceError("set", path, KindInternal, err)
	}
	return nil
}

func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := c.db.NewRef(path).Update(ctx, fields); err != nil {
		return NewPersistenceError("update", path, KindInternal, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.db.NewRef(path).Delete(ctx); err != nil {
		return NewPersistenceError("delete", path, KindInternal, err)
	}
	return nil
}

func (c *Client) AllocateID(ctx context.Context, path string) (string, error) {
	ref, err := c.db.NewRef(path).Push(ctx, nil)
	if err != nil {
		return "", NewPersistenceError("allocate", path, KindInternal, err)
	}
	if ref.Key == "" {
		return "", NewPersistenceError("allocate", path, KindInternal, fmt.Errorf("push returned empty key"))
	}
	return ref.Key, nil
}

func (c *Client) Push(ctx context.Context, path string, v any) (string, error) {
	ref, err := c.db.NewRef(path).Push(ctx, v)
	if err != nil {
		return "", NewPersistenceError("push", path, KindInternal, err)
	}
	return ref.Key, nil
}

func (c *Client) Subscribe(ctx context.Context, path string) (<-chan json.RawMessage, error) {
	return c.streamer.Stream(ctx, path)
}
