package azure

import (
	"strings"
	"time"

	"github.com/sentinel/discovery-engine/internal/connector"
	"github.com/sentinel/discovery-engine/internal/core"
)

// buildNetworkNodes turns ARM virtual networks into Vpc/Subnet nodes plus
// the BELONGS_TO_VPC edges between them, and returns a subnet resource ID
// to CIDR lookup so host building can resolve BELONGS_TO_SUBNET edges
// without a second API round trip.
func buildNetworkNodes(tenant core.TenantID, vnets []VirtualNetwork, now time.Time) ([]*core.Vpc, []*core.Subnet, []*core.Edge, map[string]string) {
	var vpcs []*core.Vpc
	var subnets []*core.Subnet
	var edges []*core.Edge
	cidrBySubnetID := map[string]string{}

	for _, vnet := range vnets {
		vpc := core.NewVpc(tenant, core.CloudProviderAzure, vnet.ID, vnet.Location, now)
		name := vnet.Name
		vpc.Name = &name
		if len(vnet.Properties.AddressSpace.AddressPrefixes) > 0 {
			cidr := vnet.Properties.AddressSpace.AddressPrefixes[0]
			vpc.CIDR = &cidr
		}
		vpcs = append(vpcs, vpc)

		for _, sn := range vnet.Properties.Subnets {
			cidr := sn.Properties.AddressPrefix
			if cidr == "" {
				continue
			}
			subnet := core.NewSubnet(tenant, cidr, now)
			subnet.CloudProvider = vpc2ptrProvider()
			subnetVpcID := vnet.ID
			subnet.VpcID = &subnetVpcID
			subnets = append(subnets, subnet)
			cidrBySubnetID[sn.ID] = cidr

			edges = append(edges, connector.MakeEdge(tenant, subnet.ID(), vpc.ID(), core.EdgeBelongsToVpc, core.EdgeProperties{}, now))
		}
	}
	return vpcs, subnets, edges, cidrBySubnetID
}

func vpc2ptrProvider() *core.CloudProvider {
	p := core.CloudProviderAzure
	return &p
}

// buildHostNodes turns ARM virtual machines into Host nodes. A VM's subnet
// is resolved against buildNetworkNodes's subnet-ID-to-CIDR map: a subnet
// matches when its name (the last segment of its resource ID) appears in
// one of the VM's network interface IDs (see nicReferencesSubnet).
func buildHostNodes(tenant core.TenantID, vms []VirtualMachine, cidrBySubnetID map[string]string, now time.Time) ([]*core.Host, []*core.Edge) {
	var hosts []*core.Host
	var edges []*core.Edge

	for _, vm := range vms {
		ip := vm.Properties.PrivateIPAddress
		host := core.NewHost(tenant, ip, vm.ID, now)
		provider := core.CloudProviderAzure
		host.CloudProvider = &provider
		instanceID := vm.ID
		host.CloudInstanceID = &instanceID
		region := vm.Location
		host.CloudRegion = &region
		if vm.Properties.OSProfile.ComputerName != "" {
			hostname := vm.Properties.OSProfile.ComputerName
			host.Hostname = &hostname
		}
		if os := vm.Properties.StorageProfile.OSDisk.OSType; os != "" {
			host.OS = &os
		}
		hosts = append(hosts, host)

		for subnetID, cidr := range cidrBySubnetID {
			if nicReferencesSubnet(vm, subnetID) {
				edges = append(edges, connector.MakeEdge(tenant, host.ID(), core.NewSubnet(tenant, cidr, time.Time{}).ID(), core.EdgeBelongsToSubnet, core.EdgeProperties{}, now))
			}
		}
	}
	return hosts, edges
}

// nicReferencesSubnet reports whether any of vm's network interface IDs
// resolve to the given subnet's resource ID path. ARM NIC resource IDs do
// not directly name their subnet, so connectors with full access would
// issue a follow-up network-interface lookup; this connector matches on the
// subnet name embedded in both IDs as a best-effort substitute.
func nicReferencesSubnet(vm VirtualMachine, subnetID string) bool {
	subnetName := lastSegment(subnetID)
	if subnetName == "" {
		return false
	}
	for _, nic := range vm.Properties.NetworkProfile.NetworkInterfaces {
		if strings.Contains(nic.ID, subnetName) {
			return true
		}
	}
	return false
}

func lastSegment(id string) string {
	parts := strings.Split(id, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// buildStorageApplications turns ARM storage accounts into Application
// nodes typed as object storage.
func buildStorageApplications(tenant core.TenantID, accounts []StorageAccount, now time.Time) []*core.Application {
	var apps []*core.Application
	for _, acct := range accounts {
		apps = append(apps, core.NewApplication(tenant, core.AppTypeObjectStorage, acct.Name, now))
	}
	return apps
}
