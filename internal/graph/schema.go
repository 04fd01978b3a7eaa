package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// nodeLabels lists every label EnsureSchema provisions indexes for. Kept
// alongside the schema statements rather than imported from internal/core
// so that a schema change is reviewed as a single diff.
var nodeLabels = []string{
	"Host", "Service", "Port", "User", "Group", "Role", "Policy", "Subnet",
	"Vpc", "Vulnerability", "Certificate", "Application", "McpServer",
	"Finding", "ConfigSnapshot",
}

// EnsureSchema creates the uniqueness constraints and secondary indexes
// spec.md §6 requires: per-label uniqueness on (tenant_id, id), staleness
// indexes on Host/Service, lookup indexes on the fields each label is
// queried by, and full-text indexes over Host/User/Vulnerability text
// fields. All statements are idempotent (`IF NOT EXISTS`), so calling this
// repeatedly at every process start is safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements() {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("graph: schema statement %q: %w", stmt, err)
		}
	}
	return nil
}

func schemaStatements() []string {
	stmts := make([]string, 0, len(nodeLabels)+8)

	for _, label := range nodeLabels {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE (n.tenant_id, n.id) IS UNIQUE", label))
	}

	lookupIndexes := []struct {
		label string
		field string
	}{
		{"Host", "ip"}, {"Host", "hostname"}, {"Host", "cloud_instance_id"},
		{"Service", "name"}, {"Service", "port"},
		{"User", "username"}, {"User", "email"},
		{"Vulnerability", "cve_id"}, {"Vulnerability", "severity"},
		{"Subnet", "cidr"},
		{"Certificate", "subject"}, {"Certificate", "not_after"},
		{"McpServer", "name"},
	}
	for _, idx := range lookupIndexes {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.tenant_id, n.%s)", idx.label, idx.field))
	}

	for _, label := range []string{"Host", "Service"} {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.tenant_id, n.last_seen)", label))
	}

	fullText := map[string][]string{
		"Host":          {"hostname", "ip", "tags"},
		"User":          {"username", "display_name", "email"},
		"Vulnerability": {"cve_id", "description"},
	}
	for label, fields := range fullText {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:%s) ON EACH %s",
			"ft_"+label, label, cypherFieldList(fields)))
	}

	return stmts
}

func cypherFieldList(fields []string) string {
	out := "["
	for i, f := range fields {
		if i > 0 {
			out += ", "
		}
		out += "n." + f
	}
	return out + "]"
}
