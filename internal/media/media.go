// Package media: поиск трека по тексту или ссылке и выбор аудиопотока.
// Сам поиск/извлечение делает внешний инструмент (yt-dlp), ядро видит
// только Resolver.
package media

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoResults     = errors.New("media: no results")
	ErrNoAudioStream = errors.New("media: no audio stream")
)

// Variant: один из доступных потоков ролика.
type Variant struct {
	URL      string
	Ext      string // контейнер: webm, m4a, mp4...
	HasAudio bool
	HasVideo bool
}

// Candidate: найденный ролик.
type Candidate struct {
	Title      string
	Duration   int // секунды, 0: неизвестно
	Thumbnail  string
	WebpageURL string
	Variants   []Variant
}

type Resolver interface {
	Resolve(ctx context.Context, query string) (*Candidate, error)
}

// PreferredExt: контейнер, который берём первым среди чисто аудио-потоков (opus в webm).
const PreferredExt = "webm"

// SelectStream выбирает поток: сначала только-аудио (предпочтительно webm),
// затем первый поток со звуком. Потоки без URL не рассматриваются.
func SelectStream(vs []Variant) (Variant, bool) {
	var audioOnly []Variant
	for _, v := range vs {
		if v.URL != "" && v.HasAudio && !v.HasVideo {
			audioOnly = append(audioOnly, v)
		}
	}
	if len(audioOnly) > 0 {
		for _, v := range audioOnly {
			if v.Ext == PreferredExt {
				return v, true
			}
		}
		return audioOnly[0], true
	}
	for _, v := range vs {
		if v.URL != "" && v.HasAudio {
			return v, true
		}
	}
	return Variant{}, false
}

// IsDirectURL: ссылка на ролик, а не поисковый запрос.
func IsDirectURL(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(q, "youtube.com") || strings.Contains(q, "youtu.be")
}
