package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"

	"github.com/EgorLis/tgrelaybot/internal/logger"
)

// extractFunc отдаёт разобранный JSON yt-dlp для одной цели.
type extractFunc func(ctx context.Context, target string) ([]*ytdlp.ExtractedInfo, error)

// YTDLP ищет ролики через yt-dlp (--dump-single-json, без скачивания).
type YTDLP struct {
	extract extractFunc
	log     *logger.Logger
}

func NewYTDLP(bin string, log *logger.Logger) *YTDLP {
	if bin == "" {
		bin = "yt-dlp"
	}
	cmd := ytdlp.New().
		SetExecutable(bin).
		DumpSingleJSON().
		NoPlaylist().
		Quiet().
		NoWarnings()

	return &YTDLP{
		extract: func(ctx context.Context, target string) ([]*ytdlp.ExtractedInfo, error) {
			res, err := cmd.Run(ctx, target)
			if err != nil {
				if res != nil && strings.TrimSpace(res.Stderr) != "" {
					return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
				}
				return nil, err
			}
			return res.GetExtractedInfo()
		},
		log: log.WithComponent("ytdlp"),
	}
}

// Resolve: ссылка открывается как есть, остальное ищется как "ytsearch1:<query>".
func (y *YTDLP) Resolve(ctx context.Context, query string) (*Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResults
	}
	target := query
	if !IsDirectURL(query) {
		target = "ytsearch1:" + query
	}

	infos, err := y.extract(ctx, target)
	if err != nil {
		y.log.Warn("yt-dlp failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoResults, err)
	}
	// поиск возвращает плейлист с entries
	leaves := ytdlp.FlattenExtractedInfo(infos)
	if len(leaves) == 0 {
		return nil, ErrNoResults
	}
	return candidate(leaves[0]), nil
}

// candidate: кодек "none" библиотека уже превращает в nil.
func candidate(info *ytdlp.ExtractedInfo) *Candidate {
	c := &Candidate{
		Title:     deref(info.Title),
		Thumbnail: info.ThumbnailURL(),
	}
	if info.Duration != nil {
		c.Duration = int(*info.Duration)
	}
	if info.WebpageURL != nil {
		c.WebpageURL = *info.WebpageURL
	}
	if c.Title == "" {
		c.Title = "Unknown Title"
	}
	for _, f := range info.Formats {
		if f == nil {
			continue
		}
		c.Variants = append(c.Variants, Variant{
			URL:      f.URL,
			Ext:      deref(f.Extension),
			HasAudio: f.ACodec != nil,
			HasVideo: f.VCodec != nil,
		})
	}
	return c
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
