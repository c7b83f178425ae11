package gcp

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryBucketService keeps uploads in process.
type MemoryBucketService struct {
	mu            sync.RWMutex
	objects       map[string][]byte
	publicBaseURL string
	buckets       Buckets
}

func NewMemoryBucketService(publicBaseURL string, buckets Buckets) *MemoryBucketService {
	if publicBaseURL == "" {
		publicBaseURL = "http://localhost/objects"
	}
	if buckets.PostImage.Name == "" {
		buckets.PostImage.Name = "post-images"
	}
	if buckets.Logo.Name == "" {
		buckets.Logo.Name = "logos"
	}
	return &MemoryBucketService{objects: map[string][]byte{}, publicBaseURL: publicBaseURL, buckets: buckets}
}

func (m *MemoryBucketService) objectKey(category BucketCategory, key string) (string, error) {
	cfg, err := m.buckets.forCategory(category)
	if err != nil {
		return "", err
	}
	return cfg.Name + "/" + key, nil
}

func (m *MemoryBucketService) UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader) error {
	k, err := m.objectKey(category, key)
	if err != nil {
		return err
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[k] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryBucketService) DeleteFile(ctx context.Context, category BucketCategory, key string) error {
	k, err := m.objectKey(category, key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, k)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBucketService) GetPublicURL(category BucketCategory, key string) string {
	cfg, err := m.buckets.forCategory(category)
	if err != nil {
		return key
	}
	return publicURL(ObjectStorageModeMemory, m.publicBaseURL, cfg, key)
}

// Object returns a stored upload; tests use it to inspect what was written.
func (m *MemoryBucketService) Object(category BucketCategory, key string) ([]byte, bool) {
	k, err := m.objectKey(category, key)
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.objects[k]
	return bytes.Clone(raw), ok
}
