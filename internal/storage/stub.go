package storage

import (
	"context"
	"errors"
	"time"
)

// Stub hands out placeholder URLs when no bucket is configured.
type Stub struct {
	BaseURL string
	TTL     time.Duration
}

var _ ObjectStorage = (*Stub)(nil)

func NewStub() *Stub {
	return &Stub{BaseURL: "http://localhost:8080/_storage", TTL: 15 * time.Minute}
}

func (s *Stub) UploadURL(_ context.Context, key, _ string) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	return s.BaseURL + "/upload/" + key, time.Now().Add(s.TTL), nil
}

func (s *Stub) DownloadURL(_ context.Context, key string) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	return s.BaseURL + "/download/" + key, time.Now().Add(s.TTL), nil
}
