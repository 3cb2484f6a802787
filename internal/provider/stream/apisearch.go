package stream

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"radiobot/internal/media"
)

// apiSearch resolves queries through the YouTube Data API instead of the
// extraction engine: cheaper, faster, and it reports durations up front.
type apiSearch struct {
	service *youtube.Service
}

func newAPISearch(apiKey string) (*apiSearch, error) {
	service, err := youtube.NewService(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &apiSearch{service: service}, nil
}

func (a *apiSearch) search(ctx context.Context, src media.Source, query string, limit int) ([]media.Candidate, error) {
	call := a.service.Search.List([]string{"id", "snippet"}).
		Q(query).
		MaxResults(int64(limit)).
		Type("video")

	resp, err := call.Context(ctx).Do()
	if err != nil {
		if media.LooksBlocked(err.Error()) {
			return nil, media.Failf(media.FailBlocked, src, "api quota rejected the request")
		}
		return nil, media.WrapFailure(media.FailUnknown, src, fmt.Errorf("api search failed: %w", err))
	}

	var cands []media.Candidate
	var ids []string
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		ids = append(ids, item.Id.VideoId)
		cands = append(cands, media.Candidate{
			ID:     item.Id.VideoId,
			Title:  item.Snippet.Title,
			Artist: item.Snippet.ChannelTitle,
			URL:    "https://www.youtube.com/watch?v=" + item.Id.VideoId,
			Source: src,
		})
	}

	// Candidates stay usable without durations.
	if len(ids) > 0 {
		if durations, err := a.durations(ctx, ids); err == nil {
			for i := range cands {
				cands[i].Duration = durations[cands[i].ID]
			}
		}
	}

	return cands, nil
}

// durations fetches contentDetails for a batch of video ids.
func (a *apiSearch) durations(ctx context.Context, ids []string) (map[string]int, error) {
	call := a.service.Videos.List([]string{"contentDetails"}).
		Id(strings.Join(ids, ","))

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get video details: %w", err)
	}

	out := make(map[string]int, len(resp.Items))
	for _, video := range resp.Items {
		if video.ContentDetails != nil {
			out[video.Id] = parseISODuration(video.ContentDetails.Duration)
		}
	}
	return out, nil
}

// parseISODuration converts the API's ISO-8601 durations ("PT4M13S") to
// seconds. Malformed input yields 0, which later picks up the source default.
func parseISODuration(iso string) int {
	s := strings.TrimPrefix(iso, "PT")
	if s == iso {
		return 0
	}

	total := 0
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'H' || r == 'M' || r == 'S':
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0
			}
			switch r {
			case 'H':
				total += n * 3600
			case 'M':
				total += n * 60
			case 'S':
				total += n
			}
			num = ""
		default:
			return 0
		}
	}
	return total
}
