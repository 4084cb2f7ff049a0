// Package env builds the links of a process from flags and environment.
package env

import (
	"context"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/l0/frame"
	"github.com/robotalks/framelink/pkg/l0/line/serial"
	"github.com/robotalks/framelink/pkg/l0/line/sim"
	"github.com/robotalks/framelink/pkg/l0/line/websocket"
	"github.com/robotalks/framelink/pkg/l0/link"
	"github.com/robotalks/framelink/pkg/report/mqtt"
)

// Backoff policies.
const (
	BackoffExp   = "exp"
	BackoffShift = "shift"
	BackoffFixed = "fixed"
)

// LinkConfig describes one link.
type LinkConfig struct {
	Name string
	// Device is the line URL:
	//   serial:///dev/ttyUSB0  a serial port
	//   ws://host:port/path    a websocket bridge
	//   sim://                 an in-process peer acknowledging everything
	Device string
	Baud   int
	RxSize int
	// Backoff is one of exp, shift or fixed.
	Backoff string
	// RetryBudget is the total wait spread over attempts by the fixed policy.
	RetryBudget time.Duration

	Link link.Config
}

// Config is the configuration of all links.
type Config struct {
	SenderID uint
	// MQTTBrokerURL specifies the MQTT broker for reports, empty to disable.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	Links         []LinkConfig
}

func defaultLink(name string) LinkConfig {
	return LinkConfig{
		Name:        name,
		Device:      "sim://",
		Baud:        115200,
		RxSize:      512,
		Backoff:     BackoffExp,
		RetryBudget: 300 * time.Millisecond,
		Link:        link.DefaultConfig(),
	}
}

var defaultConfig = Config{
	SenderID:      1,
	MQTTBrokerURL: "mqtt://localhost:1883/framelink/",
	Links: []LinkConfig{
		defaultLink("console"),
		defaultLink("host"),
		defaultLink("sampler"),
	},
}

func init() {
	defaultConfig.SenderID = uint(SenderIDFromMachine())
	if val := os.Getenv("FRAMELINK_SENDER_ID"); val != "" {
		if id, err := strconv.ParseUint(val, 0, 8); err == nil {
			defaultConfig.SenderID = uint(id)
		}
	}
	if val, ok := os.LookupEnv("FRAMELINK_MQTT_URL"); ok {
		defaultConfig.MQTTBrokerURL = val
	}
	for n := range defaultConfig.Links {
		lc := &defaultConfig.Links[n]
		if val := os.Getenv("FRAMELINK_" + strings.ToUpper(lc.Name) + "_DEV"); val != "" {
			lc.Device = val
		}
	}
}

// SenderIDFromMachine derives a non-zero sender id from the machine id.
func SenderIDFromMachine() byte {
	id, err := machineid.ProtectedID("framelink")
	if err != nil {
		glog.V(1).Infof("machine id unavailable: %v", err)
		return 1
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	if b := byte(h.Sum32()); b != 0 {
		return b
	}
	return 1
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.UintVar(&defaultConfig.SenderID, "sender-id", defaultConfig.SenderID, "Sender ID put in outgoing frames.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL for reports, empty to disable.")
	for n := range defaultConfig.Links {
		lc := &defaultConfig.Links[n]
		prefix := lc.Name + "-"
		flag.StringVar(&lc.Device, prefix+"dev", lc.Device, "Line URL of "+lc.Name+" link.")
		flag.IntVar(&lc.Baud, prefix+"baud", lc.Baud, "Baud rate of "+lc.Name+" serial line.")
		flag.IntVar(&lc.Link.MaxAttempts, prefix+"attempts", lc.Link.MaxAttempts, "Max transmissions of a frame.")
		flag.DurationVar(&lc.Link.Interval, prefix+"interval", lc.Link.Interval, "Base acknowledgement wait.")
		flag.StringVar(&lc.Backoff, prefix+"backoff", lc.Backoff, "Backoff policy: exp, shift, fixed.")
		flag.DurationVar(&lc.RetryBudget, prefix+"budget", lc.RetryBudget, "Total retry budget of fixed backoff.")
		flag.IntVar(&lc.Link.QueueDepth, prefix+"queue", lc.Link.QueueDepth, "Transmit queue depth.")
	}
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Links = append([]LinkConfig(nil), defaultConfig.Links...)
	return &conf
}

// LinkConfig returns the link parameters with backoff and sender id applied.
func (c *Config) LinkConfig(lc *LinkConfig) (link.Config, error) {
	conf := lc.Link
	if c.SenderID > 0xff {
		return conf, fmt.Errorf("sender id %d out of range", c.SenderID)
	}
	conf.SenderID = byte(c.SenderID)
	if conf.Interval <= 0 {
		conf.Interval = link.DefaultConfig().Interval
	}
	switch lc.Backoff {
	case "", BackoffExp:
		conf.Backoff = link.ExponentialBackoff(conf.Interval)
	case BackoffShift:
		conf.Backoff = link.ShiftBackoff(conf.Interval)
	case BackoffFixed:
		attempts := conf.MaxAttempts
		if attempts <= 0 {
			attempts = link.DefaultConfig().MaxAttempts
		}
		conf.Backoff = link.BudgetBackoff(lc.RetryBudget, attempts)
	default:
		return conf, fmt.Errorf("link %s: unknown backoff policy %q", lc.Name, lc.Backoff)
	}
	return conf, nil
}

// OpenLine opens the line of a link. The returned Runnable drives the
// line and must run alongside the link.
func OpenLine(lc *LinkConfig) (link.Line, fx.Runnable, error) {
	u, err := url.Parse(lc.Device)
	if err != nil {
		return nil, nil, fmt.Errorf("link %s: invalid device URL: %v", lc.Name, err)
	}
	switch u.Scheme {
	case "serial":
		ln, err := serial.Open(u.Path, lc.Baud, lc.RxSize)
		if err != nil {
			return nil, nil, err
		}
		return ln, ln, nil
	case "ws", "wss":
		ln, err := websocket.Dial(lc.Device, lc.RxSize)
		if err != nil {
			return nil, nil, err
		}
		return ln, ln, nil
	case "sim":
		ln, far := sim.NewPair()
		return ln, NewSimPeer(lc.Name+"-peer", far), nil
	default:
		return nil, nil, fmt.Errorf("link %s: unknown device URL scheme: %q", lc.Name, u.Scheme)
	}
}

// NewSimPeer creates a link over line acknowledging every frame.
func NewSimPeer(name string, line link.Line) *link.Link {
	conf := link.DefaultConfig()
	conf.SenderID = 0xfe
	peer := link.New(name, line, conf)
	ignore := link.HandleFrameISRFunc(func(*link.ISR, frame.Frame) {})
	for cmd := 0; cmd < int(link.CmdError); cmd++ {
		peer.RegisterISR(byte(cmd), ignore)
	}
	return peer
}

// Env holds the links of a process.
type Env struct {
	Config *Config
	Links  *link.Table
	Queue  *mqtt.Queue
	Bridge *mqtt.Bridge

	lines []fx.Runnable
}

// NewEnv opens all lines and creates the links.
func (c *Config) NewEnv() (*Env, error) {
	env := &Env{Config: c}
	var links []*link.Link
	for n := range c.Links {
		lc := &c.Links[n]
		conf, err := c.LinkConfig(lc)
		if err != nil {
			return nil, err
		}
		ln, runner, err := OpenLine(lc)
		if err != nil {
			return nil, err
		}
		links = append(links, link.New(lc.Name, ln, conf))
		env.lines = append(env.lines, fx.NamedRun(lc.Name+"-line", runner))
	}
	env.Links = link.NewTable(links...)
	if c.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL)
		if err != nil {
			return nil, fmt.Errorf("create MQTT queue error: %v", err)
		}
		env.Queue = q
		env.Bridge = mqtt.NewBridge(q, env.Links)
		env.Bridge.Attach(q)
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Run runs the lines and links until ctx is done.
func (e *Env) Run(ctx context.Context) error {
	if e.Queue != nil {
		if token := e.Queue.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("connect MQTT error: %v", token.Error())
		}
		defer e.Queue.Close()
	}
	return fx.NewRunnerWith(ctx).Go(e.lines...).Go(e.Links).Wait()
}
