package pricing

// fallbackPrice is a static per-unit price used when no live cache
// entry exists for a service key.
type fallbackPrice struct {
	PerUnit float64
	Unit    string
}

// Unit labels for fallback prices
const (
	UnitGBMonth   = "gb_month"
	UnitHour      = "hour"
	UnitNodeMonth = "node_month"
	UnitCUHour    = "capacity_unit_hour"
)

// fallbackPrices is the built-in price table keyed by normalized
// service key. Values are rough us-east-1 on-demand figures; the live
// cache overrides them per region when populated.
var fallbackPrices = map[string]fallbackPrice{
	// EBS volumes per GB-month
	"ebs.gp2":      {0.10, UnitGBMonth},
	"ebs.gp3":      {0.08, UnitGBMonth},
	"ebs.io1":      {0.125, UnitGBMonth},
	"ebs.io2":      {0.125, UnitGBMonth},
	"ebs.st1":      {0.045, UnitGBMonth},
	"ebs.sc1":      {0.015, UnitGBMonth},
	"ebs.standard": {0.05, UnitGBMonth},
	// Premium a gp2 volume pays over gp3 for the same bytes
	"ebs.gp2_premium": {0.02, UnitGBMonth},
	"ebs.snapshot":    {0.05, UnitGBMonth},

	// EC2 on-demand per hour
	"ec2.t3.micro":   {0.0104, UnitHour},
	"ec2.t3.small":   {0.0208, UnitHour},
	"ec2.t3.medium":  {0.0416, UnitHour},
	"ec2.t3.large":   {0.0832, UnitHour},
	"ec2.t3.xlarge":  {0.1664, UnitHour},
	"ec2.m5.large":   {0.096, UnitHour},
	"ec2.m5.xlarge":  {0.192, UnitHour},
	"ec2.m5.2xlarge": {0.384, UnitHour},
	"ec2.c5.large":   {0.085, UnitHour},
	"ec2.c5.xlarge":  {0.17, UnitHour},
	"ec2.r5.large":   {0.126, UnitHour},
	"ec2.r5.xlarge":  {0.252, UnitHour},

	// Network per hour
	"eip":         {0.005, UnitHour},
	"nat_gateway": {0.045, UnitHour},
	"elb.alb":     {0.0225, UnitHour},
	"elb.nlb":     {0.0225, UnitHour},

	// RDS per hour and snapshot storage
	"rds.db.t3.micro":  {0.017, UnitHour},
	"rds.db.t3.small":  {0.034, UnitHour},
	"rds.db.t3.medium": {0.068, UnitHour},
	"rds.db.m5.large":  {0.171, UnitHour},
	"rds.db.m5.xlarge": {0.342, UnitHour},
	"rds.db.r5.large":  {0.24, UnitHour},
	"rds.snapshot":     {0.095, UnitGBMonth},

	// Paused Redshift still pays for node storage
	"redshift.paused_node": {25.0, UnitNodeMonth},

	// DynamoDB provisioned capacity per unit-hour
	"dynamodb.wcu": {0.00065, UnitCUHour},
	"dynamodb.rcu": {0.00013, UnitCUHour},

	// Storage-class keys per GB-month
	"lambda.storage": {0.03, UnitGBMonth},
	"logs.storage":   {0.03, UnitGBMonth},
	"ecr.storage":    {0.10, UnitGBMonth},
	"s3.standard":    {0.023, UnitGBMonth},
}

func fallbackFor(service string) (fallbackPrice, bool) {
	p, ok := fallbackPrices[service]
	return p, ok
}
