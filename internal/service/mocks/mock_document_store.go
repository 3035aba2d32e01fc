package mocks

import (
	"context"
	"io"

	"docstore/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) CreateFromFile(ctx context.Context, path, keyName string) (*model.DocumentFile, error) {
	args := m.Called(ctx, path, keyName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentFile), args.Error(1)
}

func (m *MockDocumentStore) Create(ctx context.Context, r io.Reader, keyName string, size int64) (*model.DocumentFile, error) {
	args := m.Called(ctx, r, keyName, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentFile), args.Error(1)
}

func (m *MockDocumentStore) Find(ctx context.Context, keyName string) (*model.DocumentFile, error) {
	args := m.Called(ctx, keyName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentFile), args.Error(1)
}

func (m *MockDocumentStore) Delete(ctx context.Context, keyName string) error {
	args := m.Called(ctx, keyName)
	return args.Error(0)
}

func (m *MockDocumentStore) Download(ctx context.Context, keyName, destination string) (string, error) {
	args := m.Called(ctx, keyName, destination)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) Fetch(ctx context.Context, keyName string) ([]byte, error) {
	args := m.Called(ctx, keyName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockDocumentStore) URL(keyName string) (string, error) {
	args := m.Called(keyName)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) Bucket() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockDocumentStore) SetBucket(bucket string) {
	m.Called(bucket)
}

func (m *MockDocumentStore) SetKeyNamePrefix(prefix string) {
	m.Called(prefix)
}
