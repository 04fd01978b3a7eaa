package gcp

import (
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
)

func buildHostNodes(tenant core.TenantID, instances []Instance, now time.Time) []*core.Host {
	var hosts []*core.Host
	for _, inst := range instances {
		ip := ""
		if len(inst.NetworkInterfaces) > 0 {
			ip = inst.NetworkInterfaces[0].NetworkIP
		}
		host := core.NewHost(tenant, ip, inst.ID, now)
		provider := core.CloudProviderGCP
		host.CloudProvider = &provider
		instanceID := inst.ID
		host.CloudInstanceID = &instanceID
		region := zoneToRegion(inst.Zone)
		host.CloudRegion = &region
		if inst.Name != "" {
			name := inst.Name
			host.Hostname = &name
		}
		hosts = append(hosts, host)
	}
	return hosts
}

func buildServiceAccountUsers(tenant core.TenantID, accounts []ServiceAccount, now time.Time) []*core.User {
	var users []*core.User
	for _, acct := range accounts {
		user := core.NewUser(tenant, core.IdentitySourceGCPIAM, acct.Email, now)
		user.UserType = core.UserTypeServiceAccount
		user.Enabled = !acct.Disabled
		if acct.DisplayName != "" {
			name := acct.DisplayName
			user.DisplayName = &name
		}
		users = append(users, user)
	}
	return users
}

// zoneToRegion strips a Compute Engine zone URL/name ("us-central1-a" or a
// full "https://.../zones/us-central1-a") down to its region
// ("us-central1").
func zoneToRegion(zone string) string {
	for i := len(zone) - 1; i >= 0; i-- {
		if zone[i] == '/' {
			zone = zone[i+1:]
			break
		}
	}
	idx := lastDash(zone)
	if idx < 0 {
		return zone
	}
	return zone[:idx]
}

func lastDash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return i
		}
	}
	return -1
}
