package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/costhound/costhound/types"
)

// listAddresses discovers Elastic IPs. DescribeAddresses is not
// paginated; one call returns everything.
func (a *Adapter) listAddresses(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	output, err := c.ec2.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, err
	}

	var candidates []types.Candidate
	for _, addr := range output.Addresses {
		id := aws.ToString(addr.AllocationId)
		meta := types.CandidateMetadata{
			Associated: addr.AssociationId != nil,
		}
		candidates = append(candidates, newCandidate(types.CandidateElasticIP, id, aws.ToString(addr.PublicIp), region, meta))
	}
	return candidates, nil
}

// listNATGateways discovers NAT gateways with connection evidence
func (a *Adapter) listNATGateways(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := ec2.NewDescribeNatGatewaysPaginator(c.ec2, &ec2.DescribeNatGatewaysInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, gw := range output.NatGateways {
			id := aws.ToString(gw.NatGatewayId)
			meta := types.CandidateMetadata{
				State:     string(gw.State),
				CreatedAt: safeTime(gw.CreateTime),
			}

			conns, ok := a.metricP95(ctx, c.metrics, "AWS/NATGateway", "ActiveConnectionCount",
				[]cwtypes.Dimension{dim("NatGatewayId", id)})
			meta.ConnectionsP95 = conns
			meta.HasMetrics = ok

			candidates = append(candidates, newCandidate(types.CandidateNATGateway, id, nameTag(gw.Tags), region, meta))
		}
	}
	return candidates, nil
}

// listLoadBalancers discovers ELBv2 load balancers and counts their
// healthy targets across target groups.
func (a *Adapter) listLoadBalancers(ctx context.Context, c *regionClients, region string) ([]types.Candidate, error) {
	var candidates []types.Candidate
	paginator := elasticloadbalancingv2.NewDescribeLoadBalancersPaginator(c.elbv2, &elasticloadbalancingv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, lb := range output.LoadBalancers {
			cand, err := a.loadBalancerCandidate(ctx, c, region, lb)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, cand)
		}
	}
	return candidates, nil
}

func (a *Adapter) loadBalancerCandidate(ctx context.Context, c *regionClients, region string, lb elbv2types.LoadBalancer) (types.Candidate, error) {
	arn := aws.ToString(lb.LoadBalancerArn)

	healthy, groups, err := a.healthyTargets(ctx, c, arn)
	if err != nil {
		return types.Candidate{}, err
	}

	meta := types.CandidateMetadata{
		State:          string(lb.State.Code),
		CreatedAt:      safeTime(lb.CreatedTime),
		HealthyTargets: healthy,
		TargetGroups:   groups,
	}
	return newCandidate(types.CandidateLoadBalancer, arn, aws.ToString(lb.LoadBalancerName), region, meta), nil
}

func (a *Adapter) healthyTargets(ctx context.Context, c *regionClients, lbArn string) (healthy, groups int, err error) {
	paginator := elasticloadbalancingv2.NewDescribeTargetGroupsPaginator(c.elbv2, &elasticloadbalancingv2.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(lbArn),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, 0, err
		}
		for _, tg := range output.TargetGroups {
			groups++
			health, err := c.elbv2.DescribeTargetHealth(ctx, &elasticloadbalancingv2.DescribeTargetHealthInput{
				TargetGroupArn: tg.TargetGroupArn,
			})
			if err != nil {
				return 0, 0, err
			}
			for _, desc := range health.TargetHealthDescriptions {
				if desc.TargetHealth != nil && desc.TargetHealth.State == elbv2types.TargetHealthStateEnumHealthy {
					healthy++
				}
			}
		}
	}
	return healthy, groups, nil
}
