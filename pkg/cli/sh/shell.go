package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/framelink/pkg/l0/env"
	"github.com/robotalks/framelink/pkg/l0/link"
)

// Shell provides ishell backed interactive console over the links.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	SendTimeout time.Duration

	Shell   *ishell.Shell
	Env     *env.Env
	Current *link.Link
}

const (
	shellKey   = "$shell"
	nonePrompt = "[none] > "
)

var (
	// flags

	evalOnly    bool
	outputJSON  bool
	sendTimeout = time.Second

	// commands
	commands = []*ishell.Cmd{
		&LinksCmd,
		&UseCmd,
		&SendCmd,
		&InjectCmd,
		&StatsCmd,
		&AcksCmd,
		&TraceCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&sendTimeout, "send-timeout", sendTimeout, "Timeout of send command.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(e *env.Env) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		SendTimeout: sendTimeout,

		Shell: ishell.New(),
		Env:   e,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(nonePrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	if links := e.Links.Links(); len(links) > 0 {
		s.Use(links[0])
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustHaveLink wraps command func requires a current link.
func MustHaveLink(fn func(c *ishell.Context, l *link.Link)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		l := ShellFrom(c).Current
		if l == nil {
			c.Err(fmt.Errorf("no link selected"))
			return
		}
		fn(c, l)
	}
}

// ParseBytes parses hex bytes given as separate arguments ("10 0a ff")
// or concatenated ("100aff").
func ParseBytes(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.ToLower(arg), "0x")
		if len(arg)%2 != 0 {
			arg = "0" + arg
		}
		b, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q", arg)
		}
		data = append(data, b...)
	}
	return data, nil
}

// Use selects the current link.
func (s *Shell) Use(l *link.Link) {
	s.Current = l
	s.Shell.SetPrompt(l.Name() + " > ")
}

// Print prints v as JSON in JSON mode, or the text otherwise.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if !s.OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// LinksCmd lists the links.
	LinksCmd = ishell.Cmd{
		Name:    "links",
		Aliases: []string{"l"},
		Help:    "list links",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			names := s.Env.Links.Names()
			var lines []string
			for _, l := range s.Env.Links.Links() {
				mark := " "
				if l == s.Current {
					mark = "*"
				}
				lines = append(lines, fmt.Sprintf("%s %s queued=%d", mark, l.Name(), l.QueueLen()))
			}
			s.Print(c, names, strings.Join(lines, "\n"))
		},
	}

	// UseCmd selects the current link.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"u"},
		Help:    "LINK",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("link name expected"))
				return
			}
			l := s.Env.Links.Get(c.Args[0])
			if l == nil {
				c.Err(fmt.Errorf("unknown link %q", c.Args[0]))
				return
			}
			s.Use(l)
		},
	}

	// SendCmd sends a frame and waits for the acknowledgement.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "CMD [PAYLOAD-HEX...]",
		Func: MustHaveLink(func(c *ishell.Context, l *link.Link) {
			s := ShellFrom(c)
			data, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if len(data) == 0 {
				c.Err(fmt.Errorf("command expected"))
				return
			}
			d, err := l.Send(data[0], data[1:])
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.SendTimeout)
			defer cancel()
			err = d.Wait(ctx)
			if err == context.DeadlineExceeded {
				d.Cancel()
			}
			result := map[string]interface{}{
				"seq":      d.Seq(),
				"state":    d.State().String(),
				"attempts": d.Attempts(),
			}
			text := fmt.Sprintf("seq=%d %s attempts=%d", d.Seq(), d.State(), d.Attempts())
			if err != nil {
				result["error"] = err.Error()
				text += ": " + err.Error()
			}
			s.Print(c, result, text)
		}),
	}

	// InjectCmd feeds raw bytes into the receive path as if they came from the line.
	InjectCmd = ishell.Cmd{
		Name: "inject",
		Help: "HEX...",
		Func: MustHaveLink(func(c *ishell.Context, l *link.Link) {
			data, err := ParseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			l.Receive(context.Background(), data)
		}),
	}

	// StatsCmd prints counters of the current link.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "print link counters",
		Func: MustHaveLink(func(c *ishell.Context, l *link.Link) {
			st := l.Stats()
			s := ShellFrom(c)
			s.Print(c, st, fmt.Sprintf(
				"in: %d bytes %d frames %d dup %d malformed %d dropped\n"+
					"out: %d frames %d delivered %d retries %d exhausted %d queue-full %d acks-dropped",
				st.BytesIn, st.FramesIn, st.Duplicates, st.Malformed, st.DroppedBytes,
				st.FramesOut, st.Delivered, st.Retries, st.Exhausted, st.QueueFull, st.AcksDropped))
		}),
	}

	// AcksCmd prints the acknowledgement ring.
	AcksCmd = ishell.Cmd{
		Name: "acks",
		Help: "print recent acknowledgements",
		Func: MustHaveLink(func(c *ishell.Context, l *link.Link) {
			seqs := l.Acks().Recent()
			strs := make([]string, len(seqs))
			for n, seq := range seqs {
				strs[n] = strconv.Itoa(int(seq))
			}
			ShellFrom(c).Print(c, seqs, strings.Join(strs, " "))
		}),
	}

	// TraceCmd dumps the recently received bytes.
	TraceCmd = ishell.Cmd{
		Name: "trace",
		Help: "dump recently received bytes",
		Func: MustHaveLink(func(c *ishell.Context, l *link.Link) {
			trace := l.Trace()
			ShellFrom(c).Print(c, hex.EncodeToString(trace), hex.Dump(trace))
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	e := env.NewConfig().MustNewEnv()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := e.Run(ctx); err != nil {
			log.Println(err)
		}
	}()
	New(e).Run(flag.Args()...)
}
