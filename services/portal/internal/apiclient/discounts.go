package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ListPackages fetches the discount packages visible to the caller.
func (c *Client) ListPackages(ctx context.Context, accessToken string) ([]Package, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/packages/packages/", accessToken, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[Package](raw)
}

// GetPackage fetches a single discount package by id.
func (c *Client) GetPackage(ctx context.Context, accessToken string, id int64) (*Package, error) {
	var pkg Package
	path := fmt.Sprintf("/packages/packages/%d/", id)
	if err := c.do(ctx, http.MethodGet, path, accessToken, nil, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ListComments fetches the comments attached to a discount object.
func (c *Client) ListComments(ctx context.Context, accessToken string, contentTypeID, objectID int64) ([]Comment, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/packages/comments/?content_type_id=%d&object_id=%d", contentTypeID, objectID)
	if err := c.do(ctx, http.MethodGet, path, accessToken, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[Comment](raw)
}

// CreateComment posts a comment on a discount object.
func (c *Client) CreateComment(ctx context.Context, accessToken, text string, contentTypeID, objectID int64) (*Comment, error) {
	payload := map[string]any{
		"text":         text,
		"content_type": contentTypeID,
		"object_id":    objectID,
	}

	var comment Comment
	if err := c.do(ctx, http.MethodPost, "/packages/comments/", accessToken, payload, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// LikeComment toggles the caller's like on a comment and returns the new
// state.
func (c *Client) LikeComment(ctx context.Context, accessToken string, commentID int64) (liked bool, likes int, err error) {
	var resp struct {
		IsLiked    bool `json:"is_liked"`
		LikesCount int  `json:"likes_count"`
	}
	path := fmt.Sprintf("/packages/comments/%d/like/", commentID)
	if err := c.do(ctx, http.MethodPost, path, accessToken, nil, &resp); err != nil {
		return false, 0, err
	}
	return resp.IsLiked, resp.LikesCount, nil
}

// decodeList accepts either a bare JSON array or a paginated
// {"results": [...]} envelope.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var page pagedList[T]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return page.Results, nil
}
