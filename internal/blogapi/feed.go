package blogapi

import (
	"context"

	"github.com/quillfeed/quill/internal/feed"
)

// PostFetcher adapts api's post listing to a feed.Fetcher.
func PostFetcher(api API) feed.FetcherFunc[Post] {
	return func(ctx context.Context, token string, page int) (feed.Page[Post], error) {
		resp, err := api.FetchPosts(ctx, token, page)
		if err != nil {
			return feed.Page[Post]{}, err
		}
		return feed.Page[Post]{
			Items:       resp.Data,
			CurrentPage: resp.CurrentPage,
			LastPage:    resp.LastPage,
		}, nil
	}
}
