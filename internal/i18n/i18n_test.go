package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	b, err := Load("ko")
	require.NoError(t, err)

	assert.Equal(t, "게시글이 등록되었습니다", b.T("ko", "post_created"))
	assert.Equal(t, "Post published", b.T("en", "post_created"))
}

func TestLoad_UnknownDefaultLocale(t *testing.T) {
	t.Parallel()

	_, err := Load("fr")
	assert.Error(t, err)
}

func TestT_Fallback(t *testing.T) {
	t.Parallel()

	b, err := Load("ko")
	require.NoError(t, err)

	// Unknown locale falls back to the default catalog.
	assert.Equal(t, "저장되었습니다", b.T("ja", "bookmark_saved"))
	// Unknown key everywhere returns the key itself.
	assert.Equal(t, "no_such_key", b.T("ko", "no_such_key"))
}

func TestNegotiate(t *testing.T) {
	t.Parallel()

	b, err := Load("ko")
	require.NoError(t, err)

	tests := []struct {
		header   string
		expected string
	}{
		{"en-US,en;q=0.9", "en"},
		{"ko-KR,ko;q=0.9,en;q=0.8", "ko"},
		{"ja-JP,ja;q=0.9", "ko"}, // unsupported -> default
		{"", "ko"},
		{"en", "en"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, b.Negotiate(tt.header), "header %q", tt.header)
	}
}
