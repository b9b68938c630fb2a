package capacity

import (
	"context"
	"strconv"
	"time"

	"gridpool/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// SpotInfo is one spot market observation for an EC2 instance type.
type SpotInfo struct {
	InstanceType string
	Score        int     // 1-10, higher is easier to obtain
	Price        float64 // USD/hour
}

// AWSSpotChecker queries AWS for spot placement scores and prices
type AWSSpotChecker struct {
	ec2Client *ec2.Client
	region    string
}

func NewAWSSpotChecker(ec2Client *ec2.Client, region string) *AWSSpotChecker {
	return &AWSSpotChecker{
		ec2Client: ec2Client,
		region:    region,
	}
}

// CheckInstanceType fetches the current placement score and spot price for
// one instance type. A missing price is not an error; a missing score
// defaults to the middle of the scale.
func (c *AWSSpotChecker) CheckInstanceType(ctx context.Context, instanceType string) (*SpotInfo, error) {
	scoreResp, err := c.ec2Client.GetSpotPlacementScores(ctx, &ec2.GetSpotPlacementScoresInput{
		InstanceTypes:          []string{instanceType},
		TargetCapacity:         aws.Int32(1),
		SingleAvailabilityZone: aws.Bool(false),
		RegionNames:            []string{c.region},
		TargetCapacityUnitType: types.TargetCapacityUnitTypeUnits,
	})
	if err != nil {
		logger.WarnCtx(ctx, "failed to get spot placement score for %s: %v", instanceType, err)
		return nil, err
	}

	score := 5
	if len(scoreResp.SpotPlacementScores) > 0 {
		if scoreResp.SpotPlacementScores[0].Score != nil {
			score = int(*scoreResp.SpotPlacementScores[0].Score)
		}
	}

	price, err := c.getSpotPrice(ctx, instanceType)
	if err != nil {
		// Price is informational, keep the score.
		logger.WarnCtx(ctx, "failed to get spot price for %s: %v", instanceType, err)
	}

	return &SpotInfo{
		InstanceType: instanceType,
		Score:        score,
		Price:        price,
	}, nil
}

// getSpotPrice returns the most recent spot price for the instance type
func (c *AWSSpotChecker) getSpotPrice(ctx context.Context, instanceType string) (float64, error) {
	resp, err := c.ec2Client.DescribeSpotPriceHistory(ctx, &ec2.DescribeSpotPriceHistoryInput{
		InstanceTypes:       []types.InstanceType{types.InstanceType(instanceType)},
		ProductDescriptions: []string{"Linux/UNIX"},
		StartTime:           aws.Time(time.Now().Add(-1 * time.Hour)),
		MaxResults:          aws.Int32(1),
	})
	if err != nil {
		return 0, err
	}

	if len(resp.SpotPriceHistory) > 0 && resp.SpotPriceHistory[0].SpotPrice != nil {
		price, err := strconv.ParseFloat(*resp.SpotPriceHistory[0].SpotPrice, 64)
		if err != nil {
			return 0, err
		}
		return price, nil
	}

	return 0, nil
}
