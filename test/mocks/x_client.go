package mocks

import (
	"context"

	"github.com/hundredk/challenge-tracker/internal/xapi"
)

var _ xapi.Client = (*MockXClient)(nil)

// MockXClient is a simple mock for the X API client
type MockXClient struct {
	LookupUserFunc func(ctx context.Context, username string) (*xapi.Account, error)
	UserTweetsFunc func(ctx context.Context, userID string, maxResults int) ([]xapi.Tweet, error)

	LookupCalls int
	TweetCalls  int
}

func (m *MockXClient) LookupUser(ctx context.Context, username string) (*xapi.Account, error) {
	m.LookupCalls++
	if m.LookupUserFunc != nil {
		return m.LookupUserFunc(ctx, username)
	}
	return &xapi.Account{ID: "1", Name: username, Username: username}, nil
}

func (m *MockXClient) UserTweets(ctx context.Context, userID string, maxResults int) ([]xapi.Tweet, error) {
	m.TweetCalls++
	if m.UserTweetsFunc != nil {
		return m.UserTweetsFunc(ctx, userID, maxResults)
	}
	return []xapi.Tweet{}, nil
}
