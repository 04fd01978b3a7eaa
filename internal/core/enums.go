// Package core declares the node and edge variants of the Sentinel
// knowledge graph, the enums they are built from, and the tenant-scoping
// primitives shared by every other package in this module.
package core

import "fmt"

// Criticality ranks a Host's business importance.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
	CriticalityInfo     Criticality = "info"
)

func ParseCriticality(s string) (Criticality, error) {
	switch Criticality(s) {
	case CriticalityCritical, CriticalityHigh, CriticalityMedium, CriticalityLow, CriticalityInfo:
		return Criticality(s), nil
	default:
		return "", fmt.Errorf("invalid criticality %q", s)
	}
}

// Protocol is a transport or application protocol carried by a Service/Port.
type Protocol string

const (
	ProtocolTCP   Protocol = "tcp"
	ProtocolUDP   Protocol = "udp"
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolSSH   Protocol = "ssh"
	ProtocolRDP   Protocol = "rdp"
	ProtocolDNS   Protocol = "dns"
)

func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(s) {
	case ProtocolTCP, ProtocolUDP, ProtocolHTTP, ProtocolHTTPS, ProtocolSSH, ProtocolRDP, ProtocolDNS:
		return Protocol(s), nil
	default:
		return "", fmt.Errorf("invalid protocol %q", s)
	}
}

// ServiceState is the observed run state of a Service.
type ServiceState string

const (
	ServiceStateRunning ServiceState = "running"
	ServiceStateStopped ServiceState = "stopped"
	ServiceStateUnknown ServiceState = "unknown"
)

// PortState is the observed reachability of a Port.
type PortState string

const (
	PortStateOpen     PortState = "open"
	PortStateClosed   PortState = "closed"
	PortStateFiltered PortState = "filtered"
)

// UserType classifies the account kind behind a User node.
type UserType string

const (
	UserTypeHuman          UserType = "human"
	UserTypeServiceAccount UserType = "service_account"
	UserTypeSystem         UserType = "system"
)

// IdentitySource names the identity provider or system of record a
// User/Group/Role was discovered through.
type IdentitySource string

const (
	IdentitySourceEntraID    IdentitySource = "entra_id"
	IdentitySourceOkta       IdentitySource = "okta"
	IdentitySourceAWSIAM     IdentitySource = "aws_iam"
	IdentitySourceAzureRBAC  IdentitySource = "azure_rbac"
	IdentitySourceGCPIAM     IdentitySource = "gcp_iam"
	IdentitySourceLocal      IdentitySource = "local"
)

// PolicyType classifies the kind of access-control document a Policy node
// wraps.
type PolicyType string

const (
	PolicyTypeIAMPolicy          PolicyType = "iam_policy"
	PolicyTypeFirewallRule       PolicyType = "firewall_rule"
	PolicyTypeSecurityGroup      PolicyType = "security_group"
	PolicyTypeConditionalAccess  PolicyType = "conditional_access"
	PolicyTypeNetworkACL         PolicyType = "network_acl"
)

// CloudProvider names a cloud platform a resource was discovered in.
type CloudProvider string

const (
	CloudProviderAWS    CloudProvider = "aws"
	CloudProviderAzure  CloudProvider = "azure"
	CloudProviderGCP    CloudProvider = "gcp"
	CloudProviderOnPrem CloudProvider = "on_prem"
)

// VulnSeverity is the bucketed severity of a Vulnerability, derived from
// its CVSS score per the mapping in SeverityForCVSS.
type VulnSeverity string

const (
	VulnSeverityCritical VulnSeverity = "critical"
	VulnSeverityHigh     VulnSeverity = "high"
	VulnSeverityMedium   VulnSeverity = "medium"
	VulnSeverityLow      VulnSeverity = "low"
	VulnSeverityNone     VulnSeverity = "none"
)

// SeverityForCVSS maps a CVSS base score to its bucketed severity per
// invariant I4: >=9 critical, >=7 high, >=4 medium, >0 low, 0 none.
func SeverityForCVSS(score float64) VulnSeverity {
	switch {
	case score >= 9.0:
		return VulnSeverityCritical
	case score >= 7.0:
		return VulnSeverityHigh
	case score >= 4.0:
		return VulnSeverityMedium
	case score > 0.0:
		return VulnSeverityLow
	default:
		return VulnSeverityNone
	}
}

// AppType classifies an Application node.
type AppType string

const (
	AppTypeWebApp         AppType = "web_app"
	AppTypeContainerImage AppType = "container_image"
	AppTypeObjectStorage  AppType = "object_storage"
	AppTypeServerless     AppType = "serverless"
	AppTypeManagedCluster AppType = "managed_cluster"
)

// ConnectorType names the class of external source a Connector integrates
// with.
type ConnectorType string

const (
	ConnectorTypeAWS     ConnectorType = "aws"
	ConnectorTypeAzure   ConnectorType = "azure"
	ConnectorTypeGCP     ConnectorType = "gcp"
	ConnectorTypeEntraID ConnectorType = "entra_id"
	ConnectorTypeOkta    ConnectorType = "okta"
)

// EdgeType names the relationship a graph Edge represents. Declared once
// here and referenced everywhere else by value — no component re-derives
// or duplicates this enum (spec's "dual imports" redesign guidance).
type EdgeType string

const (
	EdgeConnectsTo        EdgeType = "CONNECTS_TO"
	EdgeHasAccess         EdgeType = "HAS_ACCESS"
	EdgeMemberOf          EdgeType = "MEMBER_OF"
	EdgeRunsOn            EdgeType = "RUNS_ON"
	EdgeTrusts            EdgeType = "TRUSTS"
	EdgeRoutesTo          EdgeType = "ROUTES_TO"
	EdgeExposes           EdgeType = "EXPOSES"
	EdgeDependsOn         EdgeType = "DEPENDS_ON"
	EdgeCanReach          EdgeType = "CAN_REACH"
	EdgeHasCVE            EdgeType = "HAS_CVE"
	EdgeHasPort           EdgeType = "HAS_PORT"
	EdgeHasCertificate    EdgeType = "HAS_CERTIFICATE"
	EdgeBelongsToSubnet   EdgeType = "BELONGS_TO_SUBNET"
	EdgeBelongsToVpc      EdgeType = "BELONGS_TO_VPC"
	EdgeHasFinding        EdgeType = "HAS_FINDING"
	EdgeHasConfigSnapshot EdgeType = "HAS_CONFIG_SNAPSHOT"
)
