package contract

import (
	"context"
	"time"

	"github.com/huangsam/ckscan/schema"
	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, args)
	out, _ := ret.Get(0).([]byte)
	return out, ret.Error(1)
}

// ShallowClone implements the GitClient interface.
func (m *MockGitClient) ShallowClone(ctx context.Context, url string, dest string) error {
	ret := m.Called(ctx, url, dest)
	return ret.Error(0)
}

// GetRepoHash implements the GitClient interface.
func (m *MockGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	ret := m.Called(ctx, repoPath)
	return ret.String(0), ret.Error(1)
}

// MockProcessRunner is a mock implementation of ProcessRunner for testing.
type MockProcessRunner struct {
	mock.Mock
}

var _ ProcessRunner = &MockProcessRunner{} // Compile-time check

// RunProcess implements the ProcessRunner interface.
func (m *MockProcessRunner) RunProcess(ctx context.Context, timeout time.Duration, name string, args ...string) schema.ProcessInvocationResult {
	ret := m.Called(ctx, timeout, name, args)
	return ret.Get(0).(schema.ProcessInvocationResult)
}

// MockDiscoverer is a mock implementation of Discoverer for testing.
type MockDiscoverer struct {
	mock.Mock
}

var _ Discoverer = &MockDiscoverer{} // Compile-time check

// Discover implements the Discoverer interface.
func (m *MockDiscoverer) Discover(ctx context.Context, query string, limit int) ([]schema.RepositoryDescriptor, error) {
	ret := m.Called(ctx, query, limit)
	repos, _ := ret.Get(0).([]schema.RepositoryDescriptor)
	return repos, ret.Error(1)
}
