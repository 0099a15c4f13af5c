package dispatcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/document"
)

func testDoc(path string, pages int) *document.Document {
	dims := make([]types.Dim, pages)
	for i := range dims {
		dims[i] = types.Dim{Width: 595, Height: 842}
	}
	return document.New(path, dims)
}

func TestPairJobsOddPageCount(t *testing.T) {
	doc := testDoc("/in/report.pdf", 7)
	jobs := PairJobs(doc, compositor.DefaultOptions(), "/out", "pdf", time.Minute)

	if len(jobs) != 4 {
		t.Fatalf("got %d jobs, want 4", len(jobs))
	}
	for i, j := range jobs[:3] {
		if j.A.Page != 2*i || j.B == nil || j.B.Page != 2*i+1 {
			t.Errorf("job %d pages = %d/%v, want %d/%d", i, j.A.Page, j.B, 2*i, 2*i+1)
		}
	}
	last := jobs[3]
	if last.A.Page != 6 || last.B != nil || len(last.Extra) != 0 {
		t.Errorf("trailing job = %+v, want single page 6", last)
	}
	want := filepath.Join("/out", "report_merged_001.pdf")
	if jobs[0].Output != want {
		t.Errorf("output = %q, want %q", jobs[0].Output, want)
	}
}

func TestPairJobsEvenPageCount(t *testing.T) {
	jobs := PairJobs(testDoc("/in/a.pdf", 6), compositor.DefaultOptions(), "/out", "png", 0)
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	for _, j := range jobs {
		if j.B == nil {
			t.Errorf("job %d has no second page", j.Index)
		}
	}
	if got := filepath.Ext(jobs[2].Output); got != ".png" {
		t.Errorf("extension = %q, want .png", got)
	}
}

func TestQuadJobs(t *testing.T) {
	jobs := QuadJobs(testDoc("/in/a.pdf", 10), compositor.DefaultOptions(), "/out", "pdf", 0)
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	if len(jobs[0].Extra) != 2 || jobs[0].Extra[1].Page != 3 {
		t.Errorf("first job extras = %+v, want pages 2,3", jobs[0].Extra)
	}
	// 10 = 4+4+2, so the last job is a plain pair.
	last := jobs[2]
	if last.A.Page != 8 || last.B == nil || last.B.Page != 9 || len(last.Extra) != 0 {
		t.Errorf("last job = %+v, want pair 8/9", last)
	}
}

func TestPairDocumentsUnevenLength(t *testing.T) {
	a := testDoc("/in/a.pdf", 3)
	b := testDoc("/in/b.pdf", 5)
	jobs := PairDocuments(a, b, compositor.DefaultOptions(), "/out", "pdf", 0)
	if len(jobs) != 5 {
		t.Fatalf("got %d jobs, want 5", len(jobs))
	}
	if jobs[1].A.Path != a.Path || jobs[1].B == nil || jobs[1].B.Path != b.Path {
		t.Errorf("job 1 = %+v, want a/b pair", jobs[1])
	}
	// Surplus pages of the longer document become singles.
	if jobs[4].A.Path != b.Path || jobs[4].A.Page != 4 || jobs[4].B != nil {
		t.Errorf("job 4 = %+v, want single b page 4", jobs[4])
	}
	// Paired jobs are named after document a, surplus singles after b.
	if want := filepath.Join("/out", "a_merged_002.pdf"); jobs[1].Output != want {
		t.Errorf("job 1 output = %q, want %q", jobs[1].Output, want)
	}
	if want := filepath.Join("/out", "b_merged_005.pdf"); jobs[4].Output != want {
		t.Errorf("job 4 output = %q, want %q", jobs[4].Output, want)
	}
}
