package google

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"replymate/internal/domain"
)

const (
	locationsPageSize = 100
	reviewsPageSize   = 50
)

func (c *Client) ListAccounts(ctx context.Context, accessToken string) ([]domain.GBPAccount, error) {
	if err := requireToken("accounts", accessToken); err != nil {
		return nil, err
	}
	var out struct {
		Accounts []domain.GBPAccount `json:"accounts"`
	}
	err := c.do(ctx, call{
		service: "accounts", endpoint: "list",
		method: http.MethodGet, url: joinPath(c.ep.Accounts, "v1", "accounts"),
		token: accessToken,
	}, &out)
	return out.Accounts, err
}

func (c *Client) ListLocations(ctx context.Context, accessToken, account, pageToken string) (domain.GBPLocationsPage, error) {
	if err := requireToken("locations", accessToken); err != nil {
		return domain.GBPLocationsPage{}, err
	}
	q := url.Values{}
	q.Set("readMask", "name,storeCode,metadata")
	q.Set("pageSize", strconv.Itoa(locationsPageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	var out domain.GBPLocationsPage
	err := c.do(ctx, call{
		service: "locations", endpoint: "list",
		method: http.MethodGet, url: joinPath(c.ep.Info, "v1", account, "locations") + "?" + q.Encode(),
		token: accessToken,
	}, &out)
	return out, err
}

func (c *Client) ListReviews(ctx context.Context, accessToken string, loc domain.LocationHandle, pageToken string) (domain.GBPReviewsPage, error) {
	if err := requireToken("reviews", accessToken); err != nil {
		return domain.GBPReviewsPage{}, err
	}
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(reviewsPageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	var out domain.GBPReviewsPage
	err := c.do(ctx, call{
		service: "reviews", endpoint: "list",
		method: http.MethodGet, url: joinPath(c.ep.Reviews, "v4", string(loc), "reviews") + "?" + q.Encode(),
		token: accessToken,
	}, &out)
	return out, err
}

// PutReply creates or replaces the owner reply. reviewID must be the bare id.
func (c *Client) PutReply(ctx context.Context, accessToken string, loc domain.LocationHandle, reviewID, comment string) (domain.GBPReply, error) {
	if err := requireToken("reply", accessToken); err != nil {
		return domain.GBPReply{}, err
	}
	var out domain.GBPReply
	err := c.do(ctx, call{
		service: "reply", endpoint: "put",
		method: http.MethodPut, url: joinPath(c.ep.Reviews, "v4", string(loc), "reviews", url.PathEscape(reviewID), "reply"),
		token: accessToken,
		body:  map[string]string{"comment": comment},
	}, &out)
	return out, err
}
