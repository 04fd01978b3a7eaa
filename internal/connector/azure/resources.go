package azure

import (
	"context"
	"fmt"

	"github.com/sentinel/discovery-engine/internal/connector/httpfetch"
)

// VirtualMachine is the subset of Microsoft.Compute/virtualMachines this
// connector cares about.
type VirtualMachine struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Properties struct {
		OSProfile struct {
			ComputerName string `json:"computerName"`
		} `json:"osProfile"`
		StorageProfile struct {
			OSDisk struct {
				OSType string `json:"osType"`
			} `json:"osDisk"`
		} `json:"storageProfile"`
		NetworkProfile struct {
			NetworkInterfaces []struct {
				ID string `json:"id"`
			} `json:"networkInterfaces"`
		} `json:"networkProfile"`
		PrivateIPAddress string `json:"privateIpAddress"`
	} `json:"properties"`
}

// VirtualNetwork is the subset of Microsoft.Network/virtualNetworks this
// connector cares about.
type VirtualNetwork struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Properties struct {
		AddressSpace struct {
			AddressPrefixes []string `json:"addressPrefixes"`
		} `json:"addressSpace"`
		Subnets []struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			Properties struct {
				AddressPrefix string `json:"addressPrefix"`
			} `json:"properties"`
		} `json:"subnets"`
	} `json:"properties"`
}

// StorageAccount is the subset of Microsoft.Storage/storageAccounts this
// connector cares about.
type StorageAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

type armPage[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"nextLink"`
}

// ARMClient fetches Azure Resource Manager collections with Link-style
// pagination (the "nextLink" field ARM returns on every paged response).
type ARMClient struct {
	http *httpfetch.Client
}

// NewARMClient returns a ResourceFetcher backed by the given httpfetch
// client.
func NewARMClient(client *httpfetch.Client) *ARMClient {
	return &ARMClient{http: client}
}

func (a *ARMClient) ListVirtualMachines(ctx context.Context, subscriptionID string) ([]VirtualMachine, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.Compute/virtualMachines?api-version=%s", managementEndpoint, subscriptionID, apiVersion)
	return fetchAllPages[VirtualMachine](ctx, a.http, url)
}

func (a *ARMClient) ListVirtualNetworks(ctx context.Context, subscriptionID string) ([]VirtualNetwork, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.Network/virtualNetworks?api-version=%s", managementEndpoint, subscriptionID, apiVersion)
	return fetchAllPages[VirtualNetwork](ctx, a.http, url)
}

func (a *ARMClient) ListStorageAccounts(ctx context.Context, subscriptionID string) ([]StorageAccount, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.Storage/storageAccounts?api-version=%s", managementEndpoint, subscriptionID, apiVersion)
	return fetchAllPages[StorageAccount](ctx, a.http, url)
}

func fetchAllPages[T any](ctx context.Context, client *httpfetch.Client, firstURL string) ([]T, error) {
	var items []T
	url := firstURL
	for url != "" {
		var page armPage[T]
		if err := client.GetJSON(ctx, url, nil, &page); err != nil {
			return items, err
		}
		items = append(items, page.Value...)
		url = page.NextLink
	}
	return items, nil
}
