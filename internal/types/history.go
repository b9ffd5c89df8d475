package types

import (
	"strconv"
	"time"
)

// RunMeta describes how a batch was invoked
type RunMeta struct {
	InputRoot          string `json:"inputRoot"`
	OutputRoot         string `json:"outputRoot,omitempty"`
	ServerURL          string `json:"serverUrl"`
	Username           string `json:"username"`
	Profile            string `json:"profile"`
	OnlyValidInvention bool   `json:"onlyValidInvention"`
	Mappings           int    `json:"mappings"`
	DryRun             bool   `json:"dryRun"`
}

// RunRecord is one stored batch run
type RunRecord struct {
	Meta   RunMeta      `json:"meta"`
	Report *BatchReport `json:"report"`
}

// RunList is a page of stored runs, newest first
type RunList struct {
	Runs []RunRecord `json:"runs"`
	// Now is used to render relative times in tables
	Now time.Time `json:"-"`
	// Age formats how long ago a run started
	Age func(then, now time.Time) string `json:"-"`
}

func (l RunList) AsTableRenderer() TableRenderer {
	return runListTable{l}
}

type runListTable struct{ l RunList }

func (t runListTable) Headers() []string {
	return []string{"Run ID", "Started", "Input", "Success", "Failed", "Dry Run"}
}

func (t runListTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.l.Runs))
	for _, run := range t.l.Runs {
		started := run.Report.StartedAt.Format(time.RFC3339)
		if t.l.Age != nil {
			started = t.l.Age(run.Report.StartedAt, t.l.Now)
		}
		rows = append(rows, []string{
			run.Report.RunID,
			started,
			run.Meta.InputRoot,
			strconv.Itoa(run.Report.Success),
			strconv.Itoa(run.Report.Failed),
			strconv.FormatBool(run.Meta.DryRun),
		})
	}
	return rows
}

func (t runListTable) EmptyMessage() string { return "No runs recorded" }

func (r RunRecord) AsTableRenderer() TableRenderer {
	return r.Report.AsTableRenderer()
}
