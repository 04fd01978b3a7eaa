package orchestrator

import "context"

// CPEResolver maps a discovered Service's product/version signature to the
// CVE IDs that should be checked against the vulnerability feeds. spec.md
// §4.6 names the intermediate values "candidate CPEs," but every feed this
// package calls (KEV, EPSS, NVD) is keyed by CVE ID, not CPE URI, so the
// table this resolves against must be populated with CVE IDs directly
// (e.g. "CVE-2024-1234"), not real CPE strings (e.g.
// "cpe:2.3:a:nginx:nginx:1.18.0:*:*:*:*:*:*:*") — this stays pluggable so a
// deployment can swap in a resolver backed by an actual CPE-match API and
// translate to CVE IDs itself.
type CPEResolver interface {
	Resolve(ctx context.Context, product, version string) ([]string, error)
}

// TableResolver resolves CPEs from a static, config-supplied mapping keyed
// by "product" or "product@version".
type TableResolver struct {
	Mapping map[string][]string
}

// NewTableResolver builds a TableResolver from a config-supplied mapping.
func NewTableResolver(mapping map[string][]string) *TableResolver {
	return &TableResolver{Mapping: mapping}
}

// Resolve looks up the exact "product@version" key first, then falls back
// to the bare "product" key so a deployment can map whole product families
// without enumerating every version.
func (r *TableResolver) Resolve(ctx context.Context, product, version string) ([]string, error) {
	if version != "" {
		if cpes, ok := r.Mapping[product+"@"+version]; ok {
			return cpes, nil
		}
	}
	if cpes, ok := r.Mapping[product]; ok {
		return cpes, nil
	}
	return nil, nil
}
