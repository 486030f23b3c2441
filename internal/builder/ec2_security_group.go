package builder

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/chainguard-dev/clog"
)

const adminPort = 22

// Duplicate-create error codes the ensure treats as success.
const (
	codeDuplicateGroup      = "InvalidGroup.Duplicate"
	codeDuplicatePermission = "InvalidPermission.Duplicate"
)

var (
	ErrSecurityGroupCreate  = fmt.Errorf("failed to create security group")
	ErrSecurityGroupIngress = fmt.Errorf("failed to authorize SSH ingress")
)

// securityGroupEnsure creates the named rule group and authorizes inbound
// SSH. Both calls tolerate "already exists": the group is shared, reusable
// infrastructure and authorizing the same permission twice yields exactly
// one rule on the provider side.
func securityGroupEnsure(ctx context.Context, client API, name string) error {
	log := clog.FromContext(ctx).With("security_group", name)

	_, err := client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String("image build SSH access"),
	})
	switch {
	case err == nil:
		log.Info("created security group")
	case isAPIError(err, codeDuplicateGroup):
		log.Info("security group already exists, reusing")
	default:
		return fmt.Errorf("%w: %w", ErrSecurityGroupCreate, err)
	}

	_, err = client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupName:  aws.String(name),
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int32(adminPort),
		ToPort:     aws.Int32(adminPort),
		CidrIp:     aws.String("0.0.0.0/0"),
	})
	switch {
	case err == nil:
		log.Info("authorized SSH ingress", "port", adminPort)
	case isAPIError(err, codeDuplicatePermission):
		log.Info("SSH ingress already authorized")
	default:
		return fmt.Errorf("%w: %w", ErrSecurityGroupIngress, err)
	}
	return nil
}
