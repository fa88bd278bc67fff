package stats

import (
	"strings"
	"testing"

	"github.com/synctree/rsyncd/pkg/pipeline"
)

func TestReportIncludesCoreFigures(t *testing.T) {
	var s pipeline.Stats
	s.RecordTransfer()
	s.AddLiteral(1024)
	s.AddMatched(2048)
	s.AddSent(512)
	s.AddReceived(256)

	report := Report(s)
	for _, want := range []string{"Number of files transferred: 1", "Literal data:", "Matched data:", "Speedup is"} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}
}

func TestReportOmitsZeroSkipsAndRedos(t *testing.T) {
	var s pipeline.Stats
	s.RecordTransfer()
	report := Report(s)
	if strings.Contains(report, "skipped") || strings.Contains(report, "Redo") {
		t.Fatalf("expected no skip/redo lines for a clean run:\n%s", report)
	}
}

func TestOneLineSummary(t *testing.T) {
	var s pipeline.Stats
	s.RecordTransfer()
	s.AddSent(100)
	summary := OneLine(s)
	if !strings.Contains(summary, "1 files") || !strings.Contains(summary, "speedup") {
		t.Fatalf("unexpected one-line summary: %q", summary)
	}
}
