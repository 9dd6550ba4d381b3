// Package player строит embed URL и HTML-страницу плеера для /api/v/play/:token.
package player

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var ErrUnsupportedURL = errors.New("player: unsupported video url")

var (
	youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)
	vimeoID   = regexp.MustCompile(`^[0-9]+$`)
)

// NormalizeEmbedURL приводит ссылку на видео к embed-форме с автозапуском.
func NormalizeEmbedURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", ErrUnsupportedURL
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", ErrUnsupportedURL
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	switch host {
	case "youtube.com", "youtube-nocookie.com", "youtu.be":
		id := youtubeVideoID(host, u)
		if !youtubeID.MatchString(id) {
			return "", ErrUnsupportedURL
		}
		return "https://www.youtube-nocookie.com/embed/" + id +
			"?autoplay=1&rel=0&modestbranding=1&playsinline=1", nil

	case "vimeo.com", "player.vimeo.com":
		id := path.Base(strings.TrimRight(u.Path, "/"))
		if !vimeoID.MatchString(id) {
			return "", ErrUnsupportedURL
		}
		return "https://player.vimeo.com/video/" + id +
			"?autoplay=1&title=0&byline=0&portrait=0", nil
	}

	q := u.Query()
	if q.Get("autoplay") == "" {
		q.Set("autoplay", "1")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func youtubeVideoID(host string, u *url.URL) string {
	if host == "youtu.be" {
		return strings.Trim(u.Path, "/")
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 2 {
		switch segments[0] {
		case "embed", "shorts", "live", "v":
			return segments[1]
		}
	}
	return ""
}
