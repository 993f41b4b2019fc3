package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Tiliavir/shiftcheck/internal/model"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Options configures a Client.
type Options struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// TeamID is the team whose schedule is read.
	TeamID string
	// ActsAs is sent as MS-APP-ACTS-AS when set.
	ActsAs string
}

// Client is an authenticated Microsoft Graph API client for Teams Shifts.
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     *zap.Logger
}

// NewClient creates a Graph client on top of an authenticated HTTP client
// (see HTTPClient).
func NewClient(httpClient *http.Client, opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{httpClient: httpClient, opts: opts, logger: logger}
}

// SharedShift is the published version of a Teams shift.
type SharedShift struct {
	DisplayName   string `json:"displayName"`
	Notes         string `json:"notes"`
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime"`
}

// Shift is a Microsoft Graph schedule shift.
type Shift struct {
	ID                   string       `json:"id"`
	UserID               string       `json:"userId"`
	SchedulingGroupID    string       `json:"schedulingGroupId"`
	CreatedDateTime      string       `json:"createdDateTime"`
	LastModifiedDateTime string       `json:"lastModifiedDateTime"`
	SharedShift          *SharedShift `json:"sharedShift"`
}

// User is the subset of a Graph user needed for reconciliation.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
}

// SchedulingGroup is a Teams Shifts group.
type SchedulingGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// shiftsResponse is the Graph API paged response for schedule shifts.
type shiftsResponse struct {
	Value    []Shift `json:"value"`
	NextLink string  `json:"@odata.nextLink"`
}

// GetShifts fetches the team's shifts that start and end inside week,
// following @odata.nextLink pages.
func (c *Client) GetShifts(ctx context.Context, week model.Week) ([]Shift, error) {
	filter := fmt.Sprintf("sharedShift/startDateTime ge %s and sharedShift/endDateTime le %s",
		week.Start.UTC().Format("2006-01-02T15:04:05.000Z"),
		week.End.UTC().Format("2006-01-02T15:04:05.000Z"),
	)
	endpoint := fmt.Sprintf("%s/teams/%s/schedule/shifts?$filter=%s",
		c.opts.BaseURL,
		url.PathEscape(c.opts.TeamID),
		strings.ReplaceAll(url.QueryEscape(filter), "+", "%20"),
	)

	var all []Shift
	for endpoint != "" {
		var page shiftsResponse
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
		endpoint = page.NextLink
	}
	c.logger.Debug("fetched shifts", zap.Int("count", len(all)), zap.String("week", week.Key()))
	return all, nil
}

// GetUser fetches a user's display name and mail address.
func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := c.getJSON(ctx, c.opts.BaseURL+"/users/"+url.PathEscape(id)+"?$select=id,displayName,mail", &u)
	return u, err
}

// GetSchedulingGroup fetches a scheduling group of the team.
func (c *Client) GetSchedulingGroup(ctx context.Context, id string) (SchedulingGroup, error) {
	var g SchedulingGroup
	endpoint := fmt.Sprintf("%s/teams/%s/schedule/schedulingGroups/%s",
		c.opts.BaseURL, url.PathEscape(c.opts.TeamID), url.PathEscape(id))
	err := c.getJSON(ctx, endpoint, &g)
	return g, err
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.ActsAs != "" {
		req.Header.Set("MS-APP-ACTS-AS", c.opts.ActsAs)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph API request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph API error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding graph response: %w", err)
	}
	return nil
}
