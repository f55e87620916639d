// Package progress renders a single-line console progress indicator for
// long-running loops. It is a side effect for humans watching the run,
// never part of the data contract.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
)

type Reporter struct {
	sp      *spinner.Spinner
	enabled bool
	verb    string
	total   int
	n       int
}

func New(enabled bool) *Reporter {
	return &Reporter{enabled: enabled}
}

// Start begins a new phase. total <= 0 means the total is unknown.
func (r *Reporter) Start(verb string, total int) {
	if !r.enabled {
		return
	}
	r.Stop()
	r.verb, r.total, r.n = verb, total, 0
	r.sp = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	r.sp.Suffix = " " + verb
	r.sp.Start()
}

func (r *Reporter) Tick() {
	if r.sp == nil {
		return
	}
	r.n++
	if r.total > 0 {
		r.sp.Suffix = fmt.Sprintf(" %s %d of %d", r.verb, r.n, r.total)
	} else {
		r.sp.Suffix = fmt.Sprintf(" %s %d", r.verb, r.n)
	}
}

func (r *Reporter) Stop() {
	if r.sp != nil {
		r.sp.Stop()
		r.sp = nil
	}
}
