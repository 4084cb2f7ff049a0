package mqtt

import (
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/l0/link"
)

// Topic suffixes.
const (
	TopicReport = "report"
	TopicSend   = "send"
	TopicResult = "result"
)

// Bridge connects the links of a table to MQTT.
type Bridge struct {
	Pub   Publisher
	Links *link.Table

	sub *Subscription
}

// NewBridge creates a Bridge publishing with pub.
func NewBridge(pub Publisher, links *link.Table) *Bridge {
	return &Bridge{Pub: pub, Links: links}
}

// Reporter returns a Reporter publishing reports of the named link.
func (b *Bridge) Reporter(name string) link.Reporter {
	topic := name + "/" + TopicReport
	return link.ReportFunc(func(r link.Report) {
		data, err := EncodeReport(r)
		if err != nil {
			glog.Errorf("mqtt: encode report error: %v", err)
			return
		}
		b.Pub.Pub(topic, data)
	})
}

// Attach makes every link report to MQTT besides the log, and accepts
// frames from MQTT if sub is not nil. Must be called before the links run.
func (b *Bridge) Attach(sub Subscriber) {
	for _, l := range b.Links.Links() {
		reporters := link.Reporters{b.Reporter(l.Name())}
		if l.Reporter != nil {
			reporters = append(reporters, l.Reporter)
		} else {
			reporters = append(reporters, link.LogReporter)
		}
		l.Reporter = reporters
	}
	if sub != nil {
		b.sub = sub.Sub("+/"+TopicSend, b.HandleSend)
	}
}

// Close stops accepting frames.
func (b *Bridge) Close() error {
	if b.sub != nil {
		return b.sub.Close()
	}
	return nil
}

// HandleSend enqueues a frame received on <link>/send. The first byte of
// the payload is the command. The outcome is published on <link>/result
// as "<seq> <state>[: error]".
func (b *Bridge) HandleSend(topic string, payload []byte) {
	name := strings.TrimSuffix(topic, "/"+TopicSend)
	l := b.Links.Get(name)
	if l == nil {
		glog.Warningf("mqtt: send to unknown link %q", name)
		return
	}
	if len(payload) == 0 {
		glog.Warningf("mqtt: empty frame for link %q", name)
		return
	}
	d, err := l.Send(payload[0], payload[1:])
	if err != nil {
		b.Pub.Pub(name+"/"+TopicResult, []byte("0 rejected: "+err.Error()))
		return
	}
	go func() {
		<-d.Done()
		msg := strconv.Itoa(int(d.Seq())) + " " + d.State().String()
		if err := d.Err(); err != nil {
			msg += ": " + err.Error()
		}
		b.Pub.Pub(name+"/"+TopicResult, []byte(msg))
	}()
}
