package pricing

import (
	"fmt"

	"github.com/costhound/costhound/rules"
	"github.com/costhound/costhound/telemetry"
	"github.com/costhound/costhound/types"
)

// Quote is the result of one cost estimation. A zero-cost quote with
// Unestimated set means no pricing data existed for the resource; the
// scan carries on and the finding is flagged instead of failing.
type Quote struct {
	MonthlyCost float64
	Currency    string
	Source      Source
	Stale       bool
	Unestimated bool
}

// Model turns a candidate resource into a monthly cost estimate.
// Resolution order per service key: non-expired cache entry for the
// exact (provider, service, region), then the static fallback table,
// then a stale cache entry if one exists, then zero with the
// unestimated flag. The model never performs live API calls.
type Model struct {
	cache    *Cache
	provider string
	logger   *telemetry.Logger
}

// NewModel creates a cost model reading from the given cache
func NewModel(cache *Cache, provider string) *Model {
	return &Model{
		cache:    cache,
		provider: provider,
		logger:   telemetry.NewLogger("pricing"),
	}
}

// EstimateMonthlyCost estimates what the candidate costs per month
// under the given waste scenario.
func (m *Model) EstimateMonthlyCost(cand types.Candidate, sc rules.Scenario) Quote {
	switch sc {
	case rules.EBSUnattached, rules.EBSIdle:
		return m.perGBMonth(ebsServiceKey(cand.Meta.VolumeType), cand.Region, float64(cand.Meta.SizeGB))
	case rules.EBSLegacyType:
		return m.perGBMonth("ebs.gp2_premium", cand.Region, float64(cand.Meta.SizeGB))
	case rules.EC2Stopped:
		// A stopped instance keeps paying for its root volume
		return m.perGBMonth("ebs.gp3", cand.Region, float64(cand.Meta.SizeGB))
	case rules.EC2Idle:
		return m.perHour("ec2."+cand.Meta.InstanceType, cand.Region)
	case rules.EIPUnassociated:
		return m.perHour("eip", cand.Region)
	case rules.NATGatewayIdle:
		return m.perHour("nat_gateway", cand.Region)
	case rules.ELBNoTargets:
		return m.perHour("elb.alb", cand.Region)
	case rules.EBSSnapshotOld:
		return m.perGBMonth("ebs.snapshot", cand.Region, float64(cand.Meta.SizeGB))
	case rules.RDSSnapshotOld:
		return m.perGBMonth("rds.snapshot", cand.Region, float64(cand.Meta.AllocatedStorageGB))
	case rules.RDSIdle:
		return m.perHour("rds."+cand.Meta.InstanceClass, cand.Region)
	case rules.RedshiftPaused:
		return m.perUnitMonth("redshift.paused_node", cand.Region, float64(cand.Meta.NodeCount))
	case rules.DynamoDBOverprovisioned:
		return m.dynamoCapacity(cand)
	case rules.LambdaStale:
		return m.perGBMonth("lambda.storage", cand.Region, gbFromBytes(cand.Meta.CodeSizeB))
	case rules.LogGroupNoRetention:
		return m.perGBMonth("logs.storage", cand.Region, gbFromBytes(cand.Meta.StoredBytes))
	case rules.ECRUntaggedImages:
		return m.perGBMonth("ecr.storage", cand.Region, gbFromBytes(cand.Meta.StoredBytes))
	case rules.S3BucketEmpty:
		return m.perGBMonth("s3.standard", cand.Region, gbFromBytes(cand.Meta.StoredBytes))
	default:
		return Quote{Currency: "USD", Unestimated: true}
	}
}

// resolved is one price lookup result before quantity is applied
type resolved struct {
	perUnit  float64
	currency string
	source   Source
	stale    bool
	ok       bool
}

func (m *Model) resolve(service, region string) resolved {
	entry, stale, found := m.cache.Lookup(m.provider, service, region)
	if found && !stale {
		return resolved{entry.PricePerUnit, entry.Currency, entry.Source, false, true}
	}

	if fb, ok := fallbackFor(service); ok {
		return resolved{fb.PerUnit, "USD", SourceFallback, false, true}
	}

	// Stale cache beats no price at all
	if found {
		return resolved{entry.PricePerUnit, entry.Currency, entry.Source, true, true}
	}

	return resolved{}
}

func (m *Model) perGBMonth(service, region string, sizeGB float64) Quote {
	r := m.resolve(service, region)
	if !r.ok {
		return m.unestimated(service, region)
	}
	return Quote{MonthlyCost: r.perUnit * sizeGB, Currency: r.currency, Source: r.source, Stale: r.stale}
}

func (m *Model) perHour(service, region string) Quote {
	r := m.resolve(service, region)
	if !r.ok {
		return m.unestimated(service, region)
	}
	return Quote{MonthlyCost: r.perUnit * HoursPerMonth, Currency: r.currency, Source: r.source, Stale: r.stale}
}

func (m *Model) perUnitMonth(service, region string, units float64) Quote {
	r := m.resolve(service, region)
	if !r.ok {
		return m.unestimated(service, region)
	}
	return Quote{MonthlyCost: r.perUnit * units, Currency: r.currency, Source: r.source, Stale: r.stale}
}

// dynamoCapacity prices provisioned read and write capacity separately
// and sums them.
func (m *Model) dynamoCapacity(cand types.Candidate) Quote {
	write := m.resolve("dynamodb.wcu", cand.Region)
	read := m.resolve("dynamodb.rcu", cand.Region)
	if !write.ok || !read.ok {
		return m.unestimated("dynamodb", cand.Region)
	}

	monthly := write.perUnit*float64(cand.Meta.WriteCapacity)*HoursPerMonth +
		read.perUnit*float64(cand.Meta.ReadCapacity)*HoursPerMonth
	return Quote{
		MonthlyCost: monthly,
		Currency:    write.currency,
		Source:      write.source,
		Stale:       write.stale || read.stale,
	}
}

func (m *Model) unestimated(service, region string) Quote {
	m.logger.Debug().
		Str("service", service).
		Str("region", region).
		Msg("no pricing data, cost unestimated")
	return Quote{Currency: "USD", Unestimated: true}
}

func ebsServiceKey(volumeType string) string {
	if volumeType == "" {
		return "ebs.gp3"
	}
	return fmt.Sprintf("ebs.%s", volumeType)
}

func gbFromBytes(b int64) float64 {
	return float64(b) / (1 << 30)
}
