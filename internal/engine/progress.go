package engine

// progressStep is the number of files between progress notifications.
const progressStep = 5

// Operation names the kind of work a progress event belongs to.
type Operation string

const (
	OpBackup  Operation = "backup"
	OpRestore Operation = "restore"
)

// Progress is a single progress notification.
type Progress struct {
	Op        Operation `json:"op"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
}

// Percent returns completion in the range 0-100. A zero total is treated as 1.
func (p Progress) Percent() float64 {
	total := p.Total
	if total <= 0 {
		total = 1
	}
	pct := float64(p.Processed) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ProgressFunc receives throttled progress notifications. It is called from
// the worker goroutine.
type ProgressFunc func(Progress)

// ShouldEmit reports whether a processed count is forwarded to the consumer:
// every fifth file, and the final one.
func ShouldEmit(processed, total int) bool {
	return processed%progressStep == 0 || processed == total
}

// Reporter throttles a strictly increasing stream of processed counts from a
// single producer.
type Reporter struct {
	op    Operation
	total int
	fn    ProgressFunc
	last  int
}

// NewReporter creates a reporter for an operation of total files. fn may be nil.
func NewReporter(op Operation, total int, fn ProgressFunc) *Reporter {
	return &Reporter{op: op, total: total, fn: fn}
}

// Total returns the denominator established by the counting pass.
func (r *Reporter) Total() int {
	return r.total
}

// Report forwards processed if it passes the throttle. It returns true when a
// notification was emitted. Values not greater than the last seen are dropped.
func (r *Reporter) Report(processed int) bool {
	if processed <= r.last {
		return false
	}
	r.last = processed
	if !ShouldEmit(processed, r.total) {
		return false
	}
	if r.fn != nil {
		r.fn(Progress{Op: r.op, Processed: processed, Total: r.total})
	}
	return true
}
