package domain

import "time"

// SubmissionFile is a file referenced by a submission.
type SubmissionFile struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// SubmissionTimes records submission milestones.
type SubmissionTimes struct {
	Submitted time.Time  `json:"submitted"`
	Completed *time.Time `json:"completed,omitempty"`
}

// Submission is one analysis request.
type Submission struct {
	SID            string           `json:"sid"`
	Classification string           `json:"classification"`
	Files          []SubmissionFile `json:"files"`
	State          string           `json:"state,omitempty"`
	Archived       bool             `json:"archived"`
	ArchiveTS      *time.Time       `json:"archive_ts,omitempty"`
	Times          SubmissionTimes  `json:"times"`
}

// FileSeen tracks when a file was observed.
type FileSeen struct {
	Count int       `json:"count"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// File is the metadata of an analysed file, keyed by sha256.
type File struct {
	SHA256         string   `json:"sha256"`
	Classification string   `json:"classification"`
	Type           string   `json:"type"`
	Size           int64    `json:"size,omitempty"`
	TLSH           string   `json:"tlsh,omitempty"`
	SSDeep         string   `json:"ssdeep,omitempty"`
	Seen           FileSeen `json:"seen"`
}

// ResultSection carries the tags a service extracted.
type ResultSection struct {
	Title string         `json:"title_text,omitempty"`
	Tags  map[string]any `json:"tags,omitempty"`
}

// ResultBody is the scored output of a service.
type ResultBody struct {
	Score    int             `json:"score"`
	Sections []ResultSection `json:"sections"`
}

// ResultResponse identifies the producing service.
type ResultResponse struct {
	ServiceName string `json:"service_name"`
}

// Result is one service output for one file. Its id starts with the file sha256.
type Result struct {
	ID             string         `json:"id,omitempty"`
	SHA256         string         `json:"sha256"`
	Classification string         `json:"classification"`
	Created        time.Time      `json:"created"`
	Response       ResultResponse `json:"response"`
	Result         ResultBody     `json:"result"`
}
