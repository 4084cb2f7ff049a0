package link

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/l0/frame"
)

// ReportKind classifies a report.
type ReportKind int

// Report kinds.
const (
	ReportTransmitFailure ReportKind = iota + 1
	ReportRetry
	ReportRetriesExhausted
	ReportUnknownCommand
	ReportAckDropped
	ReportHandlerOverflow
	ReportPeerError
)

var reportKindNames = map[ReportKind]string{
	ReportTransmitFailure:  "transmit-failure",
	ReportRetry:            "retry",
	ReportRetriesExhausted: "retries-exhausted",
	ReportUnknownCommand:   "unknown-command",
	ReportAckDropped:       "ack-dropped",
	ReportHandlerOverflow:  "handler-overflow",
	ReportPeerError:        "peer-error",
}

// String implements fmt.Stringer.
func (k ReportKind) String() string {
	if s, ok := reportKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("report-%d", int(k))
}

// ParseReportKind is the reverse of ReportKind.String.
func ParseReportKind(s string) (ReportKind, bool) {
	for k, name := range reportKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Informational is true for kinds which don't indicate a failure.
func (k ReportKind) Informational() bool {
	return k == ReportRetry
}

// Report describes an asynchronous event on a link.
type Report struct {
	Link    string
	Kind    ReportKind
	Cmd     byte
	Seq     frame.Seq
	Attempt int
	Err     error
	Time    time.Time
}

// String implements fmt.Stringer.
func (r Report) String() string {
	msg := fmt.Sprintf("%s: %s cmd=%#02x seq=%d", r.Link, r.Kind, r.Cmd, r.Seq)
	if r.Attempt > 0 {
		msg += fmt.Sprintf(" attempt=%d", r.Attempt)
	}
	if r.Err != nil {
		msg += ": " + r.Err.Error()
	}
	return msg
}

// Reporter receives reports from the link's report task.
type Reporter interface {
	Report(Report)
}

// ReportFunc is func form of Reporter.
type ReportFunc func(Report)

// Report implements Reporter.
func (f ReportFunc) Report(r Report) {
	f(r)
}

// Reporters fans a report out to all members.
type Reporters []Reporter

// Report implements Reporter.
func (rs Reporters) Report(r Report) {
	for _, reporter := range rs {
		reporter.Report(r)
	}
}

// LogReporter writes reports to glog.
var LogReporter = ReportFunc(func(r Report) {
	switch r.Kind {
	case ReportRetry:
		glog.V(1).Info(r)
	case ReportRetriesExhausted, ReportUnknownCommand:
		glog.Error(r)
	default:
		glog.Warning(r)
	}
})
