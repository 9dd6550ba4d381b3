package player

import (
	"bytes"
	"encoding/base64"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmbedURL(t *testing.T) {
	const yt = "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?autoplay=1&rel=0&modestbranding=1&playsinline=1"

	cases := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", yt},
		{"https://youtu.be/dQw4w9WgXcQ", yt},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", yt},
		{"https://youtube.com/shorts/dQw4w9WgXcQ", yt},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10", yt},
		{"https://vimeo.com/76979871", "https://player.vimeo.com/video/76979871?autoplay=1&title=0&byline=0&portrait=0"},
		{"https://player.vimeo.com/video/76979871", "https://player.vimeo.com/video/76979871?autoplay=1&title=0&byline=0&portrait=0"},
		{"https://cdn.example.com/embed/abc", "https://cdn.example.com/embed/abc?autoplay=1"},
		{"https://cdn.example.com/embed/abc?autoplay=0", "https://cdn.example.com/embed/abc?autoplay=0"},
	}
	for _, tc := range cases {
		got, err := NormalizeEmbedURL(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "not a url", "ftp://example.com/x", "https://www.youtube.com/watch", "https://vimeo.com/channels"} {
		_, err := NormalizeEmbedURL(bad)
		assert.ErrorIs(t, err, ErrUnsupportedURL, bad)
	}
}

func TestRender_HidesSourceURL(t *testing.T) {
	const src = "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ?autoplay=1"

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, PageData{Title: "Movie", EmbedURL: src, Trusted: true, UserID: "user-1"}))
	html := buf.String()

	assert.NotContains(t, html, src)
	assert.NotContains(t, html, "youtube")
	assert.NotContains(t, html, base64.StdEncoding.EncodeToString([]byte(src)))
	assert.NotContains(t, html, "user-1")
	assert.Contains(t, html, "atob(")
}

func TestRender_ChunksReassemble(t *testing.T) {
	const src = "https://player.vimeo.com/video/1?autoplay=1"

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, PageData{Title: "Movie", EmbedURL: src, Trusted: true}))

	arr := regexp.MustCompile(`var _[A-Za-z]{8} = \[(.*)\];`).FindStringSubmatch(buf.String())
	require.Len(t, arr, 2)

	var joined strings.Builder
	for _, part := range strings.Split(arr[1], ",") {
		part = strings.Trim(strings.TrimSpace(part), `"`)
		part = strings.ReplaceAll(part, `\u002b`, "+")
		part = strings.ReplaceAll(part, `\/`, "/")
		joined.WriteString(part)
	}
	decoded, err := base64.StdEncoding.DecodeString(joined.String())
	require.NoError(t, err)
	assert.Equal(t, src, string(decoded))
}

func TestRender_WatermarkForUntrusted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, PageData{Title: "Movie", EmbedURL: "https://example.com/v", Trusted: false, UserID: "user-42"}))
	assert.Contains(t, buf.String(), "user-42")
}

func TestRender_RandomIdentifiers(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Render(&a, PageData{EmbedURL: "https://example.com/v", Trusted: true}))
	require.NoError(t, Render(&b, PageData{EmbedURL: "https://example.com/v", Trusted: true}))
	assert.NotEqual(t, a.String(), b.String())
}
