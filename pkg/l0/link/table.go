package link

import (
	"context"
	"fmt"

	fx "github.com/robotalks/framelink/pkg/framework"
)

// Table is the fixed set of links built at start-up.
type Table struct {
	links []*Link
	index map[string]*Link
}

// NewTable creates a Table. It panics on duplicated names.
func NewTable(links ...*Link) *Table {
	t := &Table{index: make(map[string]*Link)}
	for _, l := range links {
		if _, exist := t.index[l.Name()]; exist {
			panic(fmt.Sprintf("link %s already exists", l.Name()))
		}
		t.index[l.Name()] = l
		t.links = append(t.links, l)
	}
	return t
}

// Get finds a link by name, nil if not found.
func (t *Table) Get(name string) *Link {
	return t.index[name]
}

// Links returns all links in creation order.
func (t *Table) Links() []*Link {
	return t.links
}

// Names returns the names of all links in creation order.
func (t *Table) Names() []string {
	names := make([]string, len(t.links))
	for n, l := range t.links {
		names[n] = l.Name()
	}
	return names
}

// Run runs all links until ctx is done.
func (t *Table) Run(ctx context.Context) error {
	runner := fx.NewRunnerWith(ctx)
	for _, l := range t.links {
		runner.Go(fx.NamedRun(l.Name(), l))
	}
	return runner.Wait()
}
