package urlstrategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	base string
}

func (f fakeStore) PublicURL(key string) string {
	return f.base + EscapeKey(key)
}

func TestStorageDelegatedStrategy(t *testing.T) {
	strategy := NewStorageDelegatedStrategy(map[string]BlobStore{
		"newsletters": fakeStore{base: "http://localhost:8080/files/newsletters/"},
	})

	u, err := strategy.PublicURL("newsletters", "1700000000000_뉴스레터.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/newsletters/1700000000000_%EB%89%B4%EC%8A%A4%EB%A0%88%ED%84%B0.pdf", u)

	key, ok := strategy.KeyFromURL("newsletters", u)
	assert.True(t, ok)
	assert.Equal(t, "1700000000000_뉴스레터.pdf", key)

	_, err = strategy.PublicURL("missing", "k")
	assert.Error(t, err)

	_, ok = strategy.KeyFromURL("newsletters", "https://elsewhere.example.com/k.pdf")
	assert.False(t, ok)
}

func TestCDNStrategy(t *testing.T) {
	strategy := NewCDNStrategy("https://cdn.example.com/")

	u, err := strategy.PublicURL("newsletter-covers", "1_cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/newsletter-covers/1_cover.jpg", u)

	key, ok := strategy.KeyFromURL("newsletter-covers", u+"?v=2")
	assert.True(t, ok)
	assert.Equal(t, "1_cover.jpg", key)

	_, ok = strategy.KeyFromURL("newsletters", u)
	assert.False(t, ok)

	_, err = NewCDNStrategy("").PublicURL("newsletters", "k")
	assert.Error(t, err)
}

func TestNewURLStrategy(t *testing.T) {
	_, err := NewURLStrategy(Config{Type: StrategyTypeCDN})
	assert.Error(t, err)

	s, err := NewURLStrategy(Config{Type: StrategyTypeCDN, CDNBaseURL: "https://cdn.example.com"})
	require.NoError(t, err)
	assert.IsType(t, &CDNStrategy{}, s)

	_, err = NewURLStrategy(Config{Type: StrategyTypeStorageDelegated})
	assert.Error(t, err)

	_, err = NewURLStrategy(Config{Type: "bogus"})
	assert.Error(t, err)
}
