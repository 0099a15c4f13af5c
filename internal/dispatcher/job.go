package dispatcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/document"
)

// PageRef points at one page (0-based) of a source document.
type PageRef struct {
	Path string
	Page int
}

// Job is one unit of work: compose the referenced pages onto a single
// landscape output page. B is nil for an odd trailing page. Extra carries
// the third and fourth page of a four-up job and is empty otherwise.
// A Job is consumed exactly once and never mutated after submission.
type Job struct {
	Index   int
	A       PageRef
	B       *PageRef
	Extra   []PageRef
	Output  string
	Options compositor.Options
	Timeout time.Duration
}

// PairJobs splits one document of N pages into ceil(N/2) jobs: pages
// (0,1), (2,3), ... with the last job holding a single page when N is odd.
func PairJobs(doc *document.Document, opts compositor.Options, outDir, ext string, timeout time.Duration) []Job {
	n := doc.PageCount()
	base := outputBase(doc.Path)
	jobs := make([]Job, 0, (n+1)/2)
	for i := 0; i < n; i += 2 {
		j := Job{
			Index:   len(jobs),
			A:       PageRef{Path: doc.Path, Page: i},
			Options: opts,
			Timeout: timeout,
		}
		if i+1 < n {
			j.B = &PageRef{Path: doc.Path, Page: i + 1}
		}
		j.Output = outputPath(outDir, base, j.Index, ext)
		jobs = append(jobs, j)
	}
	return jobs
}

// QuadJobs is the four-up variant: pages are packed four to a job in a 2x2
// grid, the last job holding whatever remains.
func QuadJobs(doc *document.Document, opts compositor.Options, outDir, ext string, timeout time.Duration) []Job {
	n := doc.PageCount()
	base := outputBase(doc.Path)
	jobs := make([]Job, 0, (n+3)/4)
	for i := 0; i < n; i += 4 {
		j := Job{
			Index:   len(jobs),
			A:       PageRef{Path: doc.Path, Page: i},
			Options: opts,
			Timeout: timeout,
		}
		if i+1 < n {
			j.B = &PageRef{Path: doc.Path, Page: i + 1}
		}
		for k := i + 2; k < n && k < i+4; k++ {
			j.Extra = append(j.Extra, PageRef{Path: doc.Path, Page: k})
		}
		j.Output = outputPath(outDir, base, j.Index, ext)
		jobs = append(jobs, j)
	}
	return jobs
}

// PairDocuments pairs page i of docA with page i of docB, one job per pair.
// When the documents differ in length the surplus pages of the longer one
// become single-page jobs.
func PairDocuments(a, b *document.Document, opts compositor.Options, outDir, ext string, timeout time.Duration) []Job {
	n := a.PageCount()
	if b.PageCount() > n {
		n = b.PageCount()
	}
	jobs := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		var j Job
		j.Index = len(jobs)
		j.Options = opts
		j.Timeout = timeout
		switch {
		case i < a.PageCount() && i < b.PageCount():
			j.A = PageRef{Path: a.Path, Page: i}
			j.B = &PageRef{Path: b.Path, Page: i}
		case i < a.PageCount():
			j.A = PageRef{Path: a.Path, Page: i}
		default:
			j.A = PageRef{Path: b.Path, Page: i}
		}
		// Name each output after the document its first page came from, so
		// surplus singles from the longer document keep their own basename.
		j.Output = outputPath(outDir, outputBase(j.A.Path), j.Index, ext)
		jobs = append(jobs, j)
	}
	return jobs
}

func outputBase(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func outputPath(dir, base string, index int, ext string) string {
	if ext == "" {
		ext = "pdf"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_merged_%03d.%s", base, index+1, strings.TrimPrefix(ext, ".")))
}
