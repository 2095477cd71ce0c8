package filter

import (
	"fmt"
	"strings"

	"github.com/greymass/elasticindex/internal/chain"
)

// Entry is one (receiver, action, actor) rule. A zero component is the
// wildcard "any".
type Entry struct {
	Receiver uint64
	Action   uint64
	Actor    uint64
}

type Filter struct {
	OnStar bool
	On     map[Entry]struct{}
	Out    map[Entry]struct{}
}

func New(onStar bool, on, out []Entry) *Filter {
	f := &Filter{
		OnStar: onStar,
		On:     make(map[Entry]struct{}, len(on)),
		Out:    make(map[Entry]struct{}, len(out)),
	}
	for _, e := range on {
		f.On[e] = struct{}{}
	}
	for _, e := range out {
		f.Out[e] = struct{}{}
	}
	return f
}

// Include decides whether an action should be indexed. An allow match
// is required first (star, exact, or per-actor); any deny match then
// wins over it.
func (f *Filter) Include(act *chain.Action) bool {
	receiver := chain.StringToName(act.Account)
	action := chain.StringToName(act.Name)

	include := false
	if f.OnStar {
		include = true
	} else if _, ok := f.On[Entry{receiver, action, 0}]; ok {
		include = true
	} else {
		for _, a := range act.Authorization {
			if _, ok := f.On[Entry{receiver, action, chain.StringToName(a.Actor)}]; ok {
				include = true
				break
			}
		}
	}

	if !include {
		return false
	}

	if _, ok := f.Out[Entry{receiver, 0, 0}]; ok {
		return false
	}
	if _, ok := f.Out[Entry{receiver, action, 0}]; ok {
		return false
	}
	for _, a := range act.Authorization {
		if _, ok := f.Out[Entry{receiver, action, chain.StringToName(a.Actor)}]; ok {
			return false
		}
	}
	return true
}

// ParseEntries reads "receiver:action:actor" rules; "*" or an empty
// component is the wildcard. A bare "*" is returned via the star flag.
func ParseEntries(specs []string) (entries []Entry, star bool, err error) {
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		if spec == "*" {
			star = true
			continue
		}

		parts := strings.Split(spec, ":")
		if len(parts) > 3 {
			return nil, false, fmt.Errorf("invalid filter entry %q: want receiver:action:actor", spec)
		}
		for len(parts) < 3 {
			parts = append(parts, "")
		}

		var e Entry
		if parts[0] != "" && parts[0] != "*" {
			e.Receiver = chain.StringToName(parts[0])
		}
		if parts[1] != "" && parts[1] != "*" {
			e.Action = chain.StringToName(parts[1])
		}
		if parts[2] != "" && parts[2] != "*" {
			e.Actor = chain.StringToName(parts[2])
		}
		if e.Receiver == 0 && e.Action == 0 && e.Actor == 0 {
			return nil, false, fmt.Errorf("filter entry %q matches nothing", spec)
		}
		entries = append(entries, e)
	}
	return entries, star, nil
}

func (f *Filter) Summary() string {
	if f.OnStar {
		return fmt.Sprintf("ALL (star), %d deny rule(s)", len(f.Out))
	}
	return fmt.Sprintf("%d allow rule(s), %d deny rule(s)", len(f.On), len(f.Out))
}
