package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/content-autopilot/internal/calendar"
	"github.com/jonathan/content-autopilot/internal/pipeline"
	"github.com/jonathan/content-autopilot/internal/pipeline/steps"
	"github.com/jonathan/content-autopilot/internal/types"
)

func ptr[T any](v T) *T { return &v }

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProgress(pipeline.ProgressEvent{
		Step: steps.RefreshOpportunities, Number: 1, Status: steps.StatusCompleted,
		Message: "Synced 120 queries, scored 40 opportunities",
	})
	p.PrintProgress(pipeline.ProgressEvent{
		Unit: 2, Step: steps.GenerateArticle, Number: 3, Status: steps.StatusFailed,
		Message: "Generate article failed",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Step 1/4: Synced 120 queries")
	assert.Contains(t, lines[0], "✓")
	assert.Contains(t, lines[1], "[Article 2] Step 3/4")
	assert.Contains(t, lines[1], "✗")
}

func TestPrintRunReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	report := &pipeline.RunReport{
		Mode:      pipeline.ModeFresh,
		Refresh:   &pipeline.StepState{Step: steps.RefreshOpportunities, Number: 1, Status: steps.StatusCompleted},
		Refreshed: &types.RefreshResult{QueriesSynced: 12, OpportunitiesScored: 5},
		Units: []*pipeline.UnitReport{
			{
				Index:   1,
				Keyword: "best running shoes 2025",
				Steps: []*pipeline.StepState{
					{Step: steps.PickKeyword, Number: 2, Status: steps.StatusCompleted},
					{Step: steps.GenerateArticle, Number: 3, Status: steps.StatusCompleted},
					{Step: steps.PublishAndIndex, Number: 4, Status: steps.StatusCompleted},
				},
				Publish: &types.PublishResult{PublishedURL: "https://s.example/blog/best-running-shoes"},
			},
			{
				Index: 2,
				Steps: []*pipeline.StepState{
					{Step: steps.PickKeyword, Number: 2, Status: steps.StatusCompleted},
					{Step: steps.GenerateArticle, Number: 3, Status: steps.StatusFailed, Error: "RateLimited"},
					{Step: steps.PublishAndIndex, Number: 4, Status: steps.StatusPending},
				},
			},
		},
		Error: "unit 2: step 3 (generate_article) failed: RateLimited",
	}

	p.PrintRunReport(report)
	output := buf.String()

	assert.Contains(t, output, "FRESH RUN")
	assert.Contains(t, output, "12 queries synced")
	assert.Contains(t, output, "best running shoes 2025")
	assert.Contains(t, output, "https://s.example/blog/best-running-shoes")
	assert.Contains(t, output, "RateLimited")
	assert.Contains(t, output, "Published 1 of 2")
}

func TestPrintRunReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunReport(nil)
	assert.Empty(t, buf.String())
}

func TestPrintAutopilotConfig(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	cfg := &types.AutopilotConfig{
		Domain:            "s.example",
		Enabled:           true,
		Cadence:           types.CadenceWeekly,
		ReasoningLevel:    types.ReasoningHigh,
		ArticlesPerRun:    2,
		PipelineStep:      types.PipelineStepAwaitingGeneration,
		PipelineKeywordID: ptr(uuid.New()),
		LastError:         ptr("RateLimited"),
	}

	p.PrintAutopilotConfig(cfg)
	output := buf.String()

	assert.Contains(t, output, "AUTOPILOT")
	assert.Contains(t, output, "s.example")
	assert.Contains(t, output, "enabled")
	assert.Contains(t, output, "weekly")
	assert.Contains(t, output, "never")
	assert.Contains(t, output, "resume")
	assert.Contains(t, output, "RateLimited")
}

func TestPrintCalendar(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	runs := []types.ScheduledRun{
		{ScheduledDate: day(11), Status: types.ScheduledRunPending},
		{ScheduledDate: day(14), Status: types.ScheduledRunKeywordPicked, KeywordText: ptr("trail shoes")},
		{ScheduledDate: day(2), Status: types.ScheduledRunCompleted, KeywordText: ptr("road shoes"),
			PublishedURL: ptr("https://s.example/blog/road-shoes")},
	}

	p.PrintCalendar(calendar.YearMonth{Year: 2025, Month: time.July}, runs, day(10))
	output := buf.String()

	assert.Contains(t, output, "2025-07")
	assert.Contains(t, output, " 11p")
	assert.Contains(t, output, " 14k")
	assert.Contains(t, output, "  2✓")
	assert.Contains(t, output, "trail shoes")
	assert.Contains(t, output, "https://s.example/blog/road-shoes")
}

func TestPrintToggle(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintToggle(&calendar.ToggleResult{
		Action: calendar.ToggleUnchanged,
		Date:   time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC),
		Run:    &types.ScheduledRun{Status: types.ScheduledRunKeywordPicked},
	})
	assert.Contains(t, buf.String(), "2025-07-14: unchanged")
	assert.Contains(t, buf.String(), "keyword_picked")
}

func TestPrintSweep(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSweep([]pipeline.SiteSweep{
		{Domain: "a.example", Skipped: "not due"},
		{Domain: "b.example", Error: "unit 1: step 2 (pick_keyword) failed: no unused keyword opportunity available"},
		{Domain: "c.example"},
	})
	output := buf.String()

	assert.Contains(t, output, "a.example: skipped: not due")
	assert.Contains(t, output, "b.example")
	assert.Contains(t, output, "pick_keyword")
	assert.Contains(t, output, "c.example: nothing to do")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
