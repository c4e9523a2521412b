package contract

import (
	"context"

	"github.com/huangsam/repohealth/schema"
	"github.com/stretchr/testify/mock"
)

// MockGitClient is a mock implementation of GitClient for testing.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	mockArgs := []any{ctx, repoPath}
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// Clone implements the GitClient interface.
func (m *MockGitClient) Clone(ctx context.Context, url, dest string) error {
	return m.Called(ctx, url, dest).Error(0)
}

// Fetch implements the GitClient interface.
func (m *MockGitClient) Fetch(ctx context.Context, repoPath string) error {
	return m.Called(ctx, repoPath).Error(0)
}

// Checkout implements the GitClient interface.
func (m *MockGitClient) Checkout(ctx context.Context, repoPath, ref string) error {
	return m.Called(ctx, repoPath, ref).Error(0)
}

// GetRepoHash implements the GitClient interface.
func (m *MockGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	ret := m.Called(ctx, repoPath)
	return ret.String(0), ret.Error(1)
}

// GetRepoRoot implements the GitClient interface.
func (m *MockGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	ret := m.Called(ctx, contextPath)
	return ret.String(0), ret.Error(1)
}

// GetRecentCommits implements the GitClient interface.
func (m *MockGitClient) GetRecentCommits(ctx context.Context, repoPath string, limit int) ([]schema.CommitInfo, error) {
	ret := m.Called(ctx, repoPath, limit)
	commits, _ := ret.Get(0).([]schema.CommitInfo)
	return commits, ret.Error(1)
}
