package client

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileField is one multipart file part. Content is held in memory so a
// replayed request can rebuild its reader.
type FileField struct {
	Param    string
	FileName string
	Content  []byte
}

// request is an immutable descriptor of one outbound call. The attempt
// counter is threaded through the retry path instead of mutating a flag on a
// live request object, so a replay is a fresh descriptor with attempt+1.
type request struct {
	method  string
	path    string
	json    interface{}
	form    map[string]string
	files   []FileField
	result  interface{}
	attempt int
}

// do executes one authenticated call. On a 401 carrying token_not_valid it
// performs a single-flight refresh and replays the call exactly once. Blocked
// or inactive account codes force logout regardless of retry state. Every
// other error propagates unchanged.
func (c *Client) do(ctx context.Context, req request) error {
	pair, ok := c.tokens.Pair()
	if !ok {
		return ErrLoggedOut
	}

	r := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetAuthToken(pair.Access)

	if req.result != nil {
		r.SetResult(req.result)
	}
	if req.json != nil {
		r.SetBody(req.json)
	}
	if len(req.form) > 0 {
		r.SetFormData(req.form)
	}
	for _, f := range req.files {
		r.SetFileReader(f.Param, f.FileName, bytes.NewReader(f.Content))
	}

	resp, err := r.Execute(req.method, req.path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	if resp.IsSuccess() {
		return nil
	}

	apiErr := decodeError(resp.StatusCode(), resp.Body())

	if IsAccountDisabled(apiErr) {
		c.log.Warn("account disabled, forcing logout",
			zap.String("code", apiErr.Code))
		c.tokens.Logout()
		return apiErr
	}

	if IsTokenExpired(apiErr) && req.attempt == 0 {
		if refreshErr := c.refresh(ctx, pair.Access); refreshErr != nil {
			// The refresh failure, not the original 401, is what callers see.
			c.tokens.Logout()
			return refreshErr
		}
		next := req
		next.attempt++
		return c.do(ctx, next)
	}

	return apiErr
}

// refresh rotates the access token using the stored refresh credential. The
// first caller owns the refresh; concurrent callers await the same in-flight
// exchange through the singleflight group. A caller whose observed token was
// already rotated by an earlier refresh skips the exchange entirely, so an
// out-of-order response can never clobber a newer credential.
func (c *Client) refresh(ctx context.Context, seenAccess string) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		pair, ok := c.tokens.Pair()
		if !ok {
			return nil, ErrLoggedOut
		}
		if pair.Access != seenAccess {
			// Another caller finished a refresh after this request read the
			// store. Its credential is current; just replay with it.
			return nil, nil
		}

		var renewed TokenPair
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-Request-ID", uuid.NewString()).
			SetBody(map[string]string{"refresh": pair.Refresh}).
			SetResult(&renewed).
			Post("/api/token/refresh/")
		if err != nil {
			return nil, fmt.Errorf("token refresh: %w", err)
		}
		if !resp.IsSuccess() {
			return nil, decodeError(resp.StatusCode(), resp.Body())
		}

		if renewed.Refresh == "" {
			renewed.Refresh = pair.Refresh
		}
		c.tokens.Set(renewed)
		c.log.Debug("access token refreshed")
		return nil, nil
	})
	return err
}
