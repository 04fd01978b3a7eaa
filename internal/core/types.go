package core

import (
	"strconv"
	"time"
)

// Node is the common view over every node variant in the knowledge graph.
// Time is always an explicit field on the concrete struct, never read from
// a hidden clock, so discovery operations stay deterministic under test.
type Node interface {
	TenantID() TenantID
	ID() string
	Label() string
	Properties() map[string]any
	NaturalKey() string
	FirstSeen() time.Time
	LastSeen() time.Time
	SetLastSeen(time.Time)
}

// base carries the fields every node variant shares. It is embedded, never
// used on its own.
type base struct {
	Tenant    TenantID
	Ident     string
	First     time.Time
	Last      time.Time
}

func (b base) TenantID() TenantID      { return b.Tenant }
func (b base) ID() string              { return b.Ident }
func (b base) FirstSeen() time.Time    { return b.First }
func (b base) LastSeen() time.Time     { return b.Last }
func (b *base) SetLastSeen(t time.Time) { b.Last = t }

// Host is a network host: physical server, VM, container host, or cloud
// compute instance.
type Host struct {
	base
	IP               string
	Hostname         *string
	OS               *string
	MAC              *string
	CloudProvider    *CloudProvider
	CloudInstanceID  *string
	CloudRegion      *string
	Criticality      Criticality
	Tags             []string
}

func NewHost(tenant TenantID, ip, cloudInstanceID string, now time.Time) *Host {
	return &Host{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Host", tenant.String(), ip, cloudInstanceID),
			First:  now,
			Last:   now,
		},
		IP:          ip,
		Criticality: CriticalityMedium,
	}
}

func (h *Host) Label() string { return "Host" }

func (h *Host) NaturalKey() string { return h.Ident }

func (h *Host) Properties() map[string]any {
	p := map[string]any{
		"ip":          h.IP,
		"criticality": string(h.Criticality),
		"tags":        h.Tags,
	}
	if h.Hostname != nil {
		p["hostname"] = *h.Hostname
	}
	if h.OS != nil {
		p["os"] = *h.OS
	}
	if h.MAC != nil {
		p["mac"] = *h.MAC
	}
	if h.CloudProvider != nil {
		p["cloud_provider"] = string(*h.CloudProvider)
	}
	if h.CloudInstanceID != nil {
		p["cloud_instance_id"] = *h.CloudInstanceID
	}
	if h.CloudRegion != nil {
		p["cloud_region"] = *h.CloudRegion
	}
	return p
}

// Service is a running network service on a Host.
type Service struct {
	base
	Name     string
	Version  *string
	Port     uint16
	Protocol Protocol
	State    ServiceState
	Banner   *string
}

func NewService(tenant TenantID, hostID, name string, port uint16, proto Protocol, now time.Time) *Service {
	return &Service{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Service", tenant.String(), hostID, name, strconv.Itoa(int(port)), string(proto)),
			First:  now,
			Last:   now,
		},
		Name:     name,
		Port:     port,
		Protocol: proto,
		State:    ServiceStateUnknown,
	}
}

func (s *Service) Label() string      { return "Service" }
func (s *Service) NaturalKey() string { return s.Ident }
func (s *Service) Properties() map[string]any {
	p := map[string]any{
		"name":     s.Name,
		"port":     int64(s.Port),
		"protocol": string(s.Protocol),
		"state":    string(s.State),
	}
	if s.Version != nil {
		p["version"] = *s.Version
	}
	if s.Banner != nil {
		p["banner"] = *s.Banner
	}
	return p
}

// Port is an observed open/closed/filtered port on a Host.
type Port struct {
	base
	Number   uint16
	Protocol Protocol
	State    PortState
}

func NewPort(tenant TenantID, hostID string, number uint16, proto Protocol, now time.Time) *Port {
	return &Port{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Port", tenant.String(), hostID, strconv.Itoa(int(number)), string(proto)),
			First:  now,
			Last:   now,
		},
		Number:   number,
		Protocol: proto,
	}
}

func (p *Port) Label() string      { return "Port" }
func (p *Port) NaturalKey() string { return p.Ident }
func (p *Port) Properties() map[string]any {
	return map[string]any{
		"number":   int64(p.Number),
		"protocol": string(p.Protocol),
		"state":    string(p.State),
	}
}

// User is a human or machine identity account.
type User struct {
	base
	Username    string
	DisplayName *string
	Email       *string
	UserType    UserType
	Source      IdentitySource
	Enabled     bool
	MFAEnabled  *bool
}

func NewUser(tenant TenantID, source IdentitySource, username string, now time.Time) *User {
	return &User{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("User", tenant.String(), string(source), username),
			First:  now,
			Last:   now,
		},
		Username: username,
		Source:   source,
		UserType: UserTypeHuman,
		Enabled:  true,
	}
}

func (u *User) Label() string      { return "User" }
func (u *User) NaturalKey() string { return u.Ident }
func (u *User) Properties() map[string]any {
	p := map[string]any{
		"username":  u.Username,
		"user_type": string(u.UserType),
		"source":    string(u.Source),
		"enabled":   u.Enabled,
	}
	if u.DisplayName != nil {
		p["display_name"] = *u.DisplayName
	}
	if u.Email != nil {
		p["email"] = *u.Email
	}
	if u.MFAEnabled != nil {
		p["mfa_enabled"] = *u.MFAEnabled
	}
	return p
}

// Group is a collection of Users managed by an identity provider.
type Group struct {
	base
	Name   string
	Source IdentitySource
}

func NewGroup(tenant TenantID, source IdentitySource, name string, now time.Time) *Group {
	return &Group{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Group", tenant.String(), string(source), name),
			First:  now,
			Last:   now,
		},
		Name:   name,
		Source: source,
	}
}

func (g *Group) Label() string      { return "Group" }
func (g *Group) NaturalKey() string { return g.Ident }
func (g *Group) Properties() map[string]any {
	return map[string]any{"name": g.Name, "source": string(g.Source)}
}

// Role is an IAM role or permission set.
type Role struct {
	base
	Name        string
	Source      IdentitySource
	Permissions []string
}

func NewRole(tenant TenantID, source IdentitySource, name string, now time.Time) *Role {
	return &Role{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Role", tenant.String(), string(source), name),
			First:  now,
			Last:   now,
		},
		Name:   name,
		Source: source,
	}
}

func (r *Role) Label() string      { return "Role" }
func (r *Role) NaturalKey() string { return r.Ident }
func (r *Role) Properties() map[string]any {
	return map[string]any{
		"name":        r.Name,
		"source":      string(r.Source),
		"permissions": r.Permissions,
	}
}

// Policy is an IAM policy, firewall rule set, or similar access-control
// document.
type Policy struct {
	base
	Name       string
	PolicyType PolicyType
	Source     string
	RulesJSON  *string
}

func NewPolicy(tenant TenantID, source, name string, pt PolicyType, now time.Time) *Policy {
	return &Policy{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Policy", tenant.String(), source, name, string(pt)),
			First:  now,
			Last:   now,
		},
		Name:       name,
		PolicyType: pt,
		Source:     source,
	}
}

func (p *Policy) Label() string      { return "Policy" }
func (p *Policy) NaturalKey() string { return p.Ident }
func (p *Policy) Properties() map[string]any {
	props := map[string]any{
		"name":        p.Name,
		"policy_type": string(p.PolicyType),
		"source":      p.Source,
	}
	if p.RulesJSON != nil {
		props["rules_json"] = *p.RulesJSON
	}
	return props
}

// Subnet is a network subnet (cloud or on-prem).
type Subnet struct {
	base
	CIDR          string
	Name          *string
	CloudProvider *CloudProvider
	VpcID         *string
	IsPublic      bool
}

func NewSubnet(tenant TenantID, cidr string, now time.Time) *Subnet {
	return &Subnet{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Subnet", tenant.String(), cidr),
			First:  now,
			Last:   now,
		},
		CIDR: cidr,
	}
}

func (s *Subnet) Label() string      { return "Subnet" }
func (s *Subnet) NaturalKey() string { return s.Ident }
func (s *Subnet) Properties() map[string]any {
	p := map[string]any{"cidr": s.CIDR, "is_public": s.IsPublic}
	if s.Name != nil {
		p["name"] = *s.Name
	}
	if s.CloudProvider != nil {
		p["cloud_provider"] = string(*s.CloudProvider)
	}
	if s.VpcID != nil {
		p["vpc_id"] = *s.VpcID
	}
	return p
}

// Vpc is a virtual private cloud / virtual network.
type Vpc struct {
	base
	VpcID         string
	Name          *string
	CIDR          *string
	CloudProvider CloudProvider
	Region        string
}

func NewVpc(tenant TenantID, provider CloudProvider, vpcID, region string, now time.Time) *Vpc {
	return &Vpc{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Vpc", tenant.String(), string(provider), vpcID),
			First:  now,
			Last:   now,
		},
		VpcID:         vpcID,
		CloudProvider: provider,
		Region:        region,
	}
}

func (v *Vpc) Label() string      { return "Vpc" }
func (v *Vpc) NaturalKey() string { return v.Ident }
func (v *Vpc) Properties() map[string]any {
	p := map[string]any{
		"vpc_id":         v.VpcID,
		"cloud_provider": string(v.CloudProvider),
		"region":         v.Region,
	}
	if v.Name != nil {
		p["name"] = *v.Name
	}
	if v.CIDR != nil {
		p["cidr"] = *v.CIDR
	}
	return p
}

// Vulnerability is a known CVE, enriched from external intelligence feeds.
// Created and maintained by the enrichment orchestrator, not by discovery
// connectors; it may outlive any particular Service it was attached to.
type Vulnerability struct {
	base
	CVEID         string
	CVSSScore     *float64
	CVSSVector    *string
	EPSSScore     *float64
	Severity      VulnSeverity
	Description   *string
	Exploitable   bool
	InKEV         bool
	PublishedDate *time.Time
}

func NewVulnerability(tenant TenantID, cveID string, now time.Time) *Vulnerability {
	return &Vulnerability{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Vulnerability", tenant.String(), cveID),
			First:  now,
			Last:   now,
		},
		CVEID:    cveID,
		Severity: VulnSeverityNone,
	}
}

func (v *Vulnerability) Label() string      { return "Vulnerability" }
func (v *Vulnerability) NaturalKey() string { return v.Ident }
func (v *Vulnerability) Properties() map[string]any {
	p := map[string]any{
		"cve_id":      v.CVEID,
		"severity":    string(v.Severity),
		"exploitable": v.Exploitable,
		"in_kev":      v.InKEV,
	}
	if v.CVSSScore != nil {
		p["cvss_score"] = *v.CVSSScore
	}
	if v.CVSSVector != nil {
		p["cvss_vector"] = *v.CVSSVector
	}
	if v.EPSSScore != nil {
		p["epss_score"] = *v.EPSSScore
	}
	if v.Description != nil {
		p["description"] = *v.Description
	}
	if v.PublishedDate != nil {
		p["published_date"] = v.PublishedDate.Format(time.RFC3339)
	}
	return p
}

// Certificate is a TLS/SSL certificate observed on a Service.
type Certificate struct {
	base
	Subject     string
	Issuer      string
	Serial      string
	NotBefore   time.Time
	NotAfter    time.Time
	SHA256      string
}

func NewCertificate(tenant TenantID, sha256Fingerprint string, now time.Time) *Certificate {
	return &Certificate{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Certificate", tenant.String(), sha256Fingerprint),
			First:  now,
			Last:   now,
		},
		SHA256: sha256Fingerprint,
	}
}

func (c *Certificate) Label() string      { return "Certificate" }
func (c *Certificate) NaturalKey() string { return c.Ident }
func (c *Certificate) Properties() map[string]any {
	return map[string]any{
		"subject":            c.Subject,
		"issuer":             c.Issuer,
		"serial":             c.Serial,
		"not_before":         c.NotBefore.Format(time.RFC3339),
		"not_after":          c.NotAfter.Format(time.RFC3339),
		"fingerprint_sha256": c.SHA256,
	}
}

// Application is a higher-level workload: web app, container image, bucket,
// function, or managed cluster.
type Application struct {
	base
	Name    string
	Version *string
	AppType AppType
}

func NewApplication(tenant TenantID, appType AppType, name string, now time.Time) *Application {
	return &Application{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Application", tenant.String(), string(appType), name),
			First:  now,
			Last:   now,
		},
		Name:    name,
		AppType: appType,
	}
}

func (a *Application) Label() string      { return "Application" }
func (a *Application) NaturalKey() string { return a.Ident }
func (a *Application) Properties() map[string]any {
	p := map[string]any{"name": a.Name, "app_type": string(a.AppType)}
	if a.Version != nil {
		p["version"] = *a.Version
	}
	return p
}

// McpServer is a Model Context Protocol server discovered in the
// environment.
type McpServer struct {
	base
	Name          string
	Endpoint      string
	Tools         []string
	Authenticated bool
	TLSEnabled    bool
}

func NewMcpServer(tenant TenantID, endpoint string, now time.Time) *McpServer {
	return &McpServer{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("McpServer", tenant.String(), endpoint),
			First:  now,
			Last:   now,
		},
		Endpoint: endpoint,
	}
}

func (m *McpServer) Label() string      { return "McpServer" }
func (m *McpServer) NaturalKey() string { return m.Ident }
func (m *McpServer) Properties() map[string]any {
	return map[string]any{
		"name":          m.Name,
		"endpoint":      m.Endpoint,
		"tools":         m.Tools,
		"authenticated": m.Authenticated,
		"tls_enabled":   m.TLSEnabled,
	}
}

// Finding is a lightweight pointer to a finding computed elsewhere in the
// platform (the policy/threat-hunting subsystems, out of scope here). This
// core only carries it through the graph.
type Finding struct {
	base
	RuleID   string
	Severity VulnSeverity
	Summary  string
}

func NewFinding(tenant TenantID, ruleID, resourceID string, now time.Time) *Finding {
	return &Finding{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("Finding", tenant.String(), ruleID, resourceID),
			First:  now,
			Last:   now,
		},
		RuleID: ruleID,
	}
}

func (f *Finding) Label() string      { return "Finding" }
func (f *Finding) NaturalKey() string { return f.Ident }
func (f *Finding) Properties() map[string]any {
	return map[string]any{
		"rule_id":  f.RuleID,
		"severity": string(f.Severity),
		"summary":  f.Summary,
	}
}

// ConfigSnapshot is an opaque point-in-time capture of a resource's raw
// configuration document, written by discovery for the (external) policy
// subsystem to consume.
type ConfigSnapshot struct {
	base
	ResourceID string
	Document   string
}

func NewConfigSnapshot(tenant TenantID, resourceID string, now time.Time) *ConfigSnapshot {
	return &ConfigSnapshot{
		base: base{
			Tenant: tenant,
			Ident:  NaturalKey("ConfigSnapshot", tenant.String(), resourceID, now.Format(time.RFC3339Nano)),
			First:  now,
			Last:   now,
		},
		ResourceID: resourceID,
	}
}

func (c *ConfigSnapshot) Label() string      { return "ConfigSnapshot" }
func (c *ConfigSnapshot) NaturalKey() string { return c.Ident }
func (c *ConfigSnapshot) Properties() map[string]any {
	return map[string]any{"resource_id": c.ResourceID, "document": c.Document}
}

// Edge is a directed, typed relationship between two nodes in the same
// tenant.
type Edge struct {
	Tenant   TenantID
	SourceID string
	TargetID string
	Type     EdgeType
	Props    EdgeProperties
	First    time.Time
	Last     time.Time
}

// EdgeProperties are the attributes attached to an Edge.
type EdgeProperties struct {
	Protocol             *Protocol
	Port                 *uint16
	Encrypted            *bool
	Permissions          []string
	ExploitabilityScore  *float64
	Extra                map[string]any
}

// NaturalKey computes the edge's identity: (tenant, type, source, target).
func (e *Edge) NaturalKey() string {
	return EdgeNaturalKey(e.Tenant, e.Type, e.SourceID, e.TargetID)
}

