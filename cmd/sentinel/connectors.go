package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sentinel/discovery-engine/internal/config"
	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/connector/aws"
	"github.com/sentinel/discovery-engine/internal/connector/azure"
	"github.com/sentinel/discovery-engine/internal/connector/entraid"
	"github.com/sentinel/discovery-engine/internal/connector/gcp"
	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
	"github.com/sentinel/discovery-engine/internal/connector/okta"
)

// buildConnector instantiates the concrete connector named by entry.Type,
// reading its provider-specific options from entry.Options and its
// credential from secret (already resolved by the caller against
// entry.CredentialRef).
func buildConnector(ctx context.Context, entry config.ConnectorEntry, secret string) (connector.Connector, error) {
	switch entry.Type {
	case "aws":
		return aws.New(entry.Options["profile"]), nil
	case "azure":
		return azure.New(
			entry.Options["subscription_id"],
			entry.TenantID,
			entry.Options["client_id"],
			secret,
		), nil
	case "gcp":
		return gcp.New(entry.Options["project_id"], httpfetch.StaticToken(secret)), nil
	case "entra_id":
		pageSize, _ := strconv.Atoi(entry.Options["page_size"])
		return entraid.New(
			entry.TenantID,
			entry.Options["client_id"],
			secret,
			entry.Options["tenant_domain"],
			pageSize,
		), nil
	case "okta":
		pageSize, _ := strconv.Atoi(entry.Options["page_size"])
		return okta.New(entry.Options["org_domain"], secret, pageSize), nil
	default:
		return nil, fmt.Errorf("sentinel: unsupported connector type %q", entry.Type)
	}
}
