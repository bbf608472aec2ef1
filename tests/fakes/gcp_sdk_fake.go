package fakes

import (
	"context"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient is a fake Secret Manager client
type FakeGCPSecretManagerClient struct {
	// Versions maps version resource names (projects/X/secrets/Y/versions/Z) to payloads
	Versions map[string][]byte
	// Errors maps version resource names to errors to return
	Errors map[string]error
	// Requests records the names passed to AccessSecretVersion
	Requests []string

	mu sync.Mutex
}

// NewFakeGCPSecretManagerClient creates an empty fake
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: make(map[string][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretVersion stores a payload under a version resource name
func (f *FakeGCPSecretManagerClient) AddSecretVersion(name string, data []byte) {
	f.Versions[name] = data
}

// AccessSecretVersion returns the stored payload or a NotFound status
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req.GetName())

	if err, ok := f.Errors[req.GetName()]; ok {
		return nil, err
	}
	data, ok := f.Versions[req.GetName()]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", req.GetName())
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: data},
	}, nil
}
