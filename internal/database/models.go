package database

// Run is one archived analysis run.
type Run struct {
	ID             string
	Label          string
	TotalRetrieved int
	AfterDedup     int
	Included       int
	Excluded       int
	Single         int
	Multi          int
	None           int
	TopK           int
	ResultJSON     string
	ViewsJSON      *string
	ReportMarkdown *string
	IntegrityError *string
	CreatedAt      *string
}

// RunCategory is one ranked exclusion category of a run.
type RunCategory struct {
	RunID      string
	Category   string
	Rank       int
	Count      int
	Percentage float64
}

// Classification is the category assignment of one excluded article.
type Classification struct {
	RunID         string
	ArticleID     string
	Title         string
	Categories    []string
	Outcome       *string
	RepositoryURL *string
}

// RunOutcome is one reproduction-outcome tally of a run.
type RunOutcome struct {
	RunID      string
	Outcome    string
	Count      int
	Percentage float64
}

// Stats contains aggregate archive statistics.
type Stats struct {
	Runs            int
	Classifications int
	Categories      int
	FailedRuns      int
}
