package repository

import (
	"context"
	"time"

	"github.com/olivere/elastic/v7"
	"go.uber.org/zap"
)

const searchAttempts = 3

func search(ctx context.Context, searchService *elastic.SearchService) (*elastic.SearchResult, error) {
	var (
		result *elastic.SearchResult
		err    error
	)

	for attempt := 1; attempt <= searchAttempts; attempt++ {
		result, err = searchService.Do(ctx)
		if !elastic.IsStatusCode(err, 429) {
			return result, err
		}

		zap.L().With(zap.Int("attempt", attempt)).Warn("Elastic: 429 (Too Many Requests)")
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return result, err
}
