package humastar

import (
	"fmt"
	"strings"
)

// Action is a hypermedia link to something the client can do next with a
// resource, emitted as an RFC 8288 Link header with method and title
// extension parameters:
//
//	</api/spatial/4f0c…>; rel="self"; method="GET"; title="Stored record"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies that link follow-up actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, a.Title)
	}
	return b.String()
}

// ActionDef is an action template. A %s in Pattern is replaced with the
// resource ID; patterns without one link a fixed URL such as the collection.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// ActionsFor expands defs for the resource id.
func ActionsFor(id string, defs []ActionDef) []Action {
	actions := make([]Action, len(defs))
	for i, d := range defs {
		href := d.Pattern
		if strings.Contains(href, "%s") {
			href = fmt.Sprintf(href, id)
		}
		actions[i] = Action{Rel: d.Rel, Href: href, Method: d.Method, Title: d.Title}
	}
	return actions
}
