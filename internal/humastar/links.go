package humastar

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link headers per operation path. Derive fills it from
// the OpenAPI document once every route is registered; Transformer emits the
// headers on each response.
type Links struct {
	mu     sync.RWMutex
	byPath map[string][]string
}

// NewLinks returns an empty link set.
func NewLinks() *Links {
	return &Links{byPath: map[string][]string{}}
}

// Add registers a link header for responses of the operation at path.
// Duplicates are ignored.
func (l *Links) Add(from, href, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, href, rel)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.byPath[from] {
		if existing == val {
			return
		}
	}
	l.byPath[from] = append(l.byPath[from], val)
}

// For returns the headers registered for path.
func (l *Links) For(p string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.byPath[p]...)
}

// Derive walks the OpenAPI document and links collections, items and the
// /health entry point. Operations tagged "map" stream Datastar events and
// are left out.
func (l *Links) Derive(api huma.API) {
	oapi := api.OpenAPI()

	var collections, items []string
	for p, pi := range oapi.Paths {
		if hasTag(primaryTags(pi), "map") {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}

	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			l.Add(item, parent, "collection")
			l.Add(parent, item, "item")
		}
	}

	for _, coll := range collections {
		if coll == "/health" {
			continue
		}
		l.Add(coll, "/health", "up")
		l.Add("/health", coll, lastSegment(coll))
		if oapi.Paths[coll].Post != nil {
			l.Add(coll, coll, "create-form")
		}
	}
	l.Add("/health", "/openapi.json", "service-desc")
	l.Add("/health", "/docs", "service-doc")

	for _, p := range append(collections, items...) {
		if ref := responseSchema(oapi.Paths[p]); ref != "" {
			l.Add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	// Document the same relations in the spec itself.
	for p, pi := range oapi.Paths {
		headers := l.For(p)
		if len(headers) == 0 {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				documentLinks(op, headers)
			}
		}
	}
}

// Transformer emits the derived links, a resolved self link for item paths,
// pagination links for Pager bodies and action links for Actor bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l.For(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

// documentLinks adds OpenAPI Link objects to the operation's 2xx response.
func documentLinks(op *huma.Operation, headers []string) {
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  "Related: " + rel,
		}
	}
}

// responseSchema returns the schema name of the GET 2xx body, if any.
func responseSchema(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}

func parseLinkHeader(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if v, ok := strings.CutPrefix(params, `rel="`); ok {
		rel, _, _ = strings.Cut(v, `"`)
	}
	return rel, href
}
