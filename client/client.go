package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nasif-muhamed/learnerd-authoring/models"
)

// Client is the authenticated request layer for the authoring API. All
// wizard traffic flows through it so credential renewal happens in exactly
// one place.
type Client struct {
	http         *resty.Client
	tokens       *TokenStore
	refreshGroup singleflight.Group
	log          *zap.Logger
}

// New builds a client against baseURL. A zero timeout leaves calls unbounded.
func New(baseURL string, timeout time.Duration, tokens *TokenStore, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	return &Client{
		http:   httpClient,
		tokens: tokens,
		log:    log,
	}
}

// Tokens exposes the injected store, primarily for logout hooks.
func (c *Client) Tokens() *TokenStore { return c.tokens }

// Login exchanges credentials for a token pair and seeds the store.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var pair TokenPair
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&pair).
		Post("/api/token/")
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !resp.IsSuccess() {
		return decodeError(resp.StatusCode(), resp.Body())
	}
	c.tokens.Set(pair)
	return nil
}

// Logout drops the credential pair and fires logout hooks.
func (c *Client) Logout() {
	c.tokens.Logout()
}

// CreateDraft submits the step-1 form as multipart and returns the server's
// new draft, id assigned.
func (c *Client) CreateDraft(ctx context.Context, fields map[string]string, thumbnail *FileField) (*models.Course, error) {
	course := &models.Course{}
	req := request{
		method: http.MethodPost,
		path:   "/api/tutor/courses/",
		form:   fields,
		result: course,
	}
	if thumbnail != nil {
		req.files = []FileField{*thumbnail}
	}
	if err := c.do(ctx, req); err != nil {
		return nil, err
	}
	return course, nil
}

// UpdateDraft patches the given fields. With a thumbnail present the payload
// is multipart, otherwise plain JSON.
func (c *Client) UpdateDraft(ctx context.Context, courseID int, fields map[string]string, thumbnail *FileField) (*models.Course, error) {
	course := &models.Course{}
	req := request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/api/tutor/courses/%d/", courseID),
		result: course,
	}
	if thumbnail != nil {
		req.form = fields
		req.files = []FileField{*thumbnail}
	} else {
		body := make(map[string]string, len(fields))
		for k, v := range fields {
			body[k] = v
		}
		req.json = body
	}
	if err := c.do(ctx, req); err != nil {
		return nil, err
	}
	return course, nil
}

// FetchDraft loads the full draft (objectives, requirements, sections with
// items) for resume.
func (c *Client) FetchDraft(ctx context.Context, courseID int) (*models.Course, error) {
	course := &models.Course{}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/tutor/courses/%d/", courseID),
		result: course,
	})
	if err != nil {
		return nil, err
	}
	return course, nil
}

// MarkComplete flags the draft complete and available. There is no reverse
// call in this pipeline.
func (c *Client) MarkComplete(ctx context.Context, courseID int) (*models.Course, error) {
	course := &models.Course{}
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/api/tutor/courses/%d/complete/", courseID),
		json:   map[string]bool{"is_complete": true, "is_available": true},
		result: course,
	})
	if err != nil {
		return nil, err
	}
	return course, nil
}

// FetchObjectives returns the persisted objectives of a course.
func (c *Client) FetchObjectives(ctx context.Context, courseID int) ([]models.Objective, error) {
	var list []models.Objective
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/tutor/courses/%d/objectives/", courseID),
		result: &list,
	})
	return list, err
}

// DeleteObjective removes one objective and returns the server's
// authoritative post-delete list.
func (c *Client) DeleteObjective(ctx context.Context, courseID, objectiveID int) ([]models.Objective, error) {
	var list []models.Objective
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/tutor/courses/%d/objectives/%d/", courseID, objectiveID),
		result: &list,
	})
	return list, err
}

// FetchRequirements returns the persisted requirements of a course.
func (c *Client) FetchRequirements(ctx context.Context, courseID int) ([]models.Requirement, error) {
	var list []models.Requirement
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/tutor/courses/%d/requirements/", courseID),
		result: &list,
	})
	return list, err
}

// DeleteRequirement removes one requirement and returns the post-delete list.
func (c *Client) DeleteRequirement(ctx context.Context, courseID, requirementID int) ([]models.Requirement, error) {
	var list []models.Requirement
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/tutor/courses/%d/requirements/%d/", courseID, requirementID),
		result: &list,
	})
	return list, err
}

// SubmitStudyPoints batch-creates queued objectives and requirements in one
// call. The response replaces both collections wholesale.
func (c *Client) SubmitStudyPoints(ctx context.Context, courseID int, objectives, requirements []string) (*models.StudyPoints, error) {
	points := &models.StudyPoints{}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/tutor/courses/%d/study-points/", courseID),
		json: map[string][]string{
			"objectives":   objectives,
			"requirements": requirements,
		},
		result: points,
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// CreateSection appends a section with the given title and order.
func (c *Client) CreateSection(ctx context.Context, courseID int, title string, order int) (*models.Section, error) {
	section := &models.Section{}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/tutor/courses/%d/sections/", courseID),
		json:   map[string]interface{}{"title": title, "order": order},
		result: section,
	})
	if err != nil {
		return nil, err
	}
	return section, nil
}

// DeleteSection removes one section and returns the post-delete list.
func (c *Client) DeleteSection(ctx context.Context, courseID, sectionID int) ([]models.Section, error) {
	var list []models.Section
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/tutor/courses/%d/sections/%d/", courseID, sectionID),
		result: &list,
	})
	return list, err
}

// CreateSectionItem creates one item. Items are never batched: a video item
// references an upload session produced by the chunk uploader, and this call
// is the finalization step that makes the video usable.
func (c *Client) CreateSectionItem(ctx context.Context, courseID, sectionID int, item *models.SectionItem) (*models.SectionItem, error) {
	created := &models.SectionItem{}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/api/tutor/courses/%d/sections/%d/items/", courseID, sectionID),
		json:   item,
		result: created,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateSectionItem applies a partial-field patch to one item.
func (c *Client) UpdateSectionItem(ctx context.Context, courseID, sectionID, itemID int, patch map[string]interface{}) (*models.SectionItem, error) {
	updated := &models.SectionItem{}
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   fmt.Sprintf("/api/tutor/courses/%d/sections/%d/items/%d/", courseID, sectionID, itemID),
		json:   patch,
		result: updated,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSectionItem removes one item and returns the section's post-delete
// item list.
func (c *Client) DeleteSectionItem(ctx context.Context, courseID, sectionID, itemID int) ([]models.SectionItem, error) {
	var list []models.SectionItem
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/api/tutor/courses/%d/sections/%d/items/%d/", courseID, sectionID, itemID),
		result: &list,
	})
	return list, err
}

// ChunkRequest carries one 5 MiB slice of a file transfer.
type ChunkRequest struct {
	UploadID    string
	ChunkNumber int
	TotalChunks int
	FileName    string
	Data        []byte
}

// ChunkResponse reports the server's cumulative acknowledged-chunk count for
// the session.
type ChunkResponse struct {
	ChunksUploaded int `json:"chunks_uploaded"`
}

// UploadChunk sends one chunk. Re-sending an already-accepted chunk_number
// with identical bytes is idempotent server-side.
func (c *Client) UploadChunk(ctx context.Context, chunk ChunkRequest) (*ChunkResponse, error) {
	out := &ChunkResponse{}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/tutor/uploads/chunk/",
		form: map[string]string{
			"upload_id":    chunk.UploadID,
			"chunk_number": strconv.Itoa(chunk.ChunkNumber),
			"total_chunks": strconv.Itoa(chunk.TotalChunks),
			"file_name":    chunk.FileName,
		},
		files: []FileField{{
			Param:    "chunk",
			FileName: chunk.FileName,
			Content:  chunk.Data,
		}},
		result: out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
