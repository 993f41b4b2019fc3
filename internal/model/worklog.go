package model

import "time"

// Worklog is one logged time record on an issue. TimeSpent is the provider's
// free-form duration ("3h", "1d 2h", "30m").
type Worklog struct {
	Started   string `json:"started"`
	TimeSpent string `json:"timeSpent"`
	Created   string `json:"created,omitempty"`
	Updated   string `json:"updated,omitempty"`
}

// IssueWorklogs groups the worklogs recorded on a single issue.
type IssueWorklogs struct {
	IssueID  string    `json:"issueId"`
	IssueKey string    `json:"issueKey,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	Worklogs []Worklog `json:"worklogs"`
}

// WorklogUser is a user and the issues they logged time on.
type WorklogUser struct {
	Email       string          `json:"email"`
	DisplayName string          `json:"displayName"`
	Issues      []IssueWorklogs `json:"issues"`
}

// ProjectWorklogs is the per-project slice of a worklog snapshot.
type ProjectWorklogs struct {
	ProjectName string        `json:"projectName"`
	Users       []WorklogUser `json:"users"`
}

// WorklogSnapshot holds all worklogs of one week across projects.
type WorklogSnapshot struct {
	ID        string            `json:"id"`
	Week      Week              `json:"week"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Projects  []ProjectWorklogs `json:"data"`
}

// EntryCount returns the number of worklog entries in the snapshot.
func (s *WorklogSnapshot) EntryCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, p := range s.Projects {
		for _, u := range p.Users {
			for _, is := range u.Issues {
				n += len(is.Worklogs)
			}
		}
	}
	return n
}
