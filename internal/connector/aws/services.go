package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/sentinel/discovery-engine/internal/core"
)

func discoverDBInstances(ctx context.Context, tenant core.TenantID, region string, client RDSClient, now time.Time) ([]*core.Service, error) {
	out, err := client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{})
	if err != nil {
		return nil, err
	}

	services := make([]*core.Service, 0, len(out.DBInstances))
	for _, db := range out.DBInstances {
		hostID := aws.ToString(db.DBInstanceIdentifier)
		var port uint16
		if db.Endpoint != nil && db.Endpoint.Port != nil {
			port = uint16(*db.Endpoint.Port)
		}
		svc := core.NewService(tenant, hostID, aws.ToString(db.DBInstanceIdentifier), port, core.ProtocolTCP, now)
		svc.State = rdsServiceState(aws.ToString(db.DBInstanceStatus))
		engine := aws.ToString(db.Engine)
		if engine != "" {
			svc.Version = &engine
		}
		services = append(services, svc)
	}
	return services, nil
}

func rdsServiceState(status string) core.ServiceState {
	switch status {
	case "available":
		return core.ServiceStateRunning
	case "stopped":
		return core.ServiceStateStopped
	default:
		return core.ServiceStateUnknown
	}
}
