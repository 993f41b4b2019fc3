package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/shiftcheck/internal/model"
	"github.com/Tiliavir/shiftcheck/internal/timecalc"
)

// Project is a Jira project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Account is a Jira user reference.
type Account struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

// Issue is the subset of a Jira issue used for worklog attribution.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary  string   `json:"summary"`
		Assignee *Account `json:"assignee"`
	} `json:"fields"`
}

// Worklog is a Jira worklog record.
type Worklog struct {
	Author    *Account `json:"author"`
	Started   string   `json:"started"`
	TimeSpent string   `json:"timeSpent"`
	Created   string   `json:"created"`
	Updated   string   `json:"updated"`
}

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

type worklogResponse struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Worklogs   []Worklog `json:"worklogs"`
}

// FetchWorklogs collects the worklogs started inside week for every project,
// grouped by project, user and issue. Projects are fetched concurrently.
func (c *Client) FetchWorklogs(ctx context.Context, week model.Week) (*model.WorklogSnapshot, error) {
	var projects []Project
	if err := c.getJSON(ctx, "/rest/api/3/project", nil, &projects); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	results := make([]model.ProjectWorklogs, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrency)
	for i, p := range projects {
		g.Go(func() error {
			pw, err := c.projectWorklogs(gctx, p, week)
			if err != nil {
				return fmt.Errorf("project %s: %w", p.Key, err)
			}
			results[i] = pw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched worklogs", zap.Int("projects", len(projects)), zap.String("week", week.Key()))
	return &model.WorklogSnapshot{
		Week:      week,
		FetchedAt: time.Now().UTC(),
		Projects:  results,
	}, nil
}

// projectWorklogs attributes every in-week worklog of the project's issues to
// its author, falling back to the issue assignee when the author carries no
// email address. Users keep the order in which they were first seen.
func (c *Client) projectWorklogs(ctx context.Context, p Project, week model.Week) (model.ProjectWorklogs, error) {
	pw := model.ProjectWorklogs{ProjectName: p.Name, Users: []model.WorklogUser{}}

	issues, err := c.searchIssues(ctx, p, week)
	if err != nil {
		return pw, err
	}

	userIndex := map[string]int{}
	for _, issue := range issues {
		worklogs, err := c.issueWorklogs(ctx, issue.ID, week)
		if err != nil {
			return pw, fmt.Errorf("worklogs of %s: %w", issue.Key, err)
		}

		byUser := map[string][]model.Worklog{}
		var order []string
		for _, wl := range worklogs {
			who := attribute(wl, issue)
			if who == nil {
				c.logger.Debug("skipping unattributed worklog", zap.String("issue", issue.Key))
				continue
			}
			if _, seen := userIndex[who.EmailAddress]; !seen {
				userIndex[who.EmailAddress] = len(pw.Users)
				pw.Users = append(pw.Users, model.WorklogUser{Email: who.EmailAddress, DisplayName: who.DisplayName})
			}
			if _, ok := byUser[who.EmailAddress]; !ok {
				order = append(order, who.EmailAddress)
			}
			byUser[who.EmailAddress] = append(byUser[who.EmailAddress], model.Worklog{
				Started:   wl.Started,
				TimeSpent: wl.TimeSpent,
				Created:   wl.Created,
				Updated:   wl.Updated,
			})
		}
		for _, email := range order {
			u := &pw.Users[userIndex[email]]
			u.Issues = append(u.Issues, model.IssueWorklogs{
				IssueID:  issue.ID,
				IssueKey: issue.Key,
				Summary:  issue.Fields.Summary,
				Worklogs: byUser[email],
			})
		}
	}
	return pw, nil
}

func attribute(wl Worklog, issue Issue) *Account {
	if wl.Author != nil && wl.Author.EmailAddress != "" {
		return wl.Author
	}
	if a := issue.Fields.Assignee; a != nil && a.EmailAddress != "" {
		return a
	}
	return nil
}

// searchIssues returns the project's issues that have worklogs inside week.
func (c *Client) searchIssues(ctx context.Context, p Project, week model.Week) ([]Issue, error) {
	jql := fmt.Sprintf(`project = %s AND worklogDate >= "%s" AND worklogDate < "%s"`,
		p.ID, week.Start.Format(timecalc.DateLayout), week.End.Format(timecalc.DateLayout))

	var all []Issue
	for startAt := 0; ; {
		q := url.Values{
			"jql":        {jql},
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(c.pageSize)},
			"fields":     {"summary,assignee"},
		}
		var page searchResponse
		if err := c.getJSON(ctx, "/rest/api/3/search", q, &page); err != nil {
			return nil, fmt.Errorf("searching issues: %w", err)
		}
		all = append(all, page.Issues...)
		if len(page.Issues) < c.pageSize {
			return all, nil
		}
		startAt += len(page.Issues)
	}
}

// issueWorklogs returns the issue's worklogs that started inside week.
// Entries with an unparsable start are kept; the aggregator decides about them.
func (c *Client) issueWorklogs(ctx context.Context, issueID string, week model.Week) ([]Worklog, error) {
	var all []Worklog
	for startAt := 0; ; {
		q := url.Values{
			"startAt":       {strconv.Itoa(startAt)},
			"maxResults":    {strconv.Itoa(c.pageSize)},
			"startedAfter":  {strconv.FormatInt(week.Start.UnixMilli(), 10)},
			"startedBefore": {strconv.FormatInt(week.End.UnixMilli(), 10)},
		}
		var page worklogResponse
		if err := c.getJSON(ctx, "/rest/api/3/issue/"+url.PathEscape(issueID)+"/worklog", q, &page); err != nil {
			return nil, err
		}
		for _, wl := range page.Worklogs {
			if started, err := timecalc.ParseTimestamp(wl.Started); err == nil && !week.Contains(started) {
				continue
			}
			all = append(all, wl)
		}
		startAt += len(page.Worklogs)
		if len(page.Worklogs) == 0 || startAt >= page.Total {
			return all, nil
		}
	}
}
