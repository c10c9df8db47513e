package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stolostron/automation-capi/support/poll"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"
	"github.com/go-logr/logr"
)

// vpcStackOutputKey is the output under which the infrastructure stack
// exposes the VPC it created.
const vpcStackOutputKey = "VPCId"

// findStack looks up the cluster's infrastructure stack. A ValidationError
// means the stack is already deleted, which is not an error here: the
// caller falls back to tag-based VPC discovery.
func findStack(ctx context.Context, cf cloudformationiface.CloudFormationAPI, name string) (*cloudformation.Stack, error) {
	output, err := cf.DescribeStacksWithContext(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == "ValidationError" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if count := len(output.Stacks); count != 1 {
		return nil, fmt.Errorf("expected exactly 1 stack named %s, got %d", name, count)
	}
	return output.Stacks[0], nil
}

func stackOutput(stack *cloudformation.Stack, key string) string {
	for i, o := range stack.Outputs {
		if aws.StringValue(o.OutputKey) == key {
			return aws.StringValue(stack.Outputs[i].OutputValue)
		}
	}
	return ""
}

// retryStackDeletion re-triggers deletion of a stack that was left in
// DELETE_FAILED, then waits a bounded time for it to disappear. Called only
// after the manual reclamation removed the resources the stack was stuck on.
func retryStackDeletion(ctx context.Context, cf cloudformationiface.CloudFormationAPI, log logr.Logger, stack *cloudformation.Stack, attempts int, interval time.Duration) error {
	_, err := cf.DeleteStackWithContext(ctx, &cloudformation.DeleteStackInput{
		StackName: stack.StackId,
	})
	if err != nil {
		return fmt.Errorf("failed to re-trigger stack deletion: %w", err)
	}
	log.Info("Re-triggered stack deletion", "id", aws.StringValue(stack.StackId))

	res := poll.WaitUntil(ctx, attempts, interval, func(ctx context.Context) (bool, string, error) {
		output, err := cf.DescribeStacksWithContext(ctx, &cloudformation.DescribeStacksInput{
			StackName: stack.StackId,
		})
		if err != nil {
			var awsErr awserr.Error
			if errors.As(err, &awsErr) && awsErr.Code() == "ValidationError" {
				// Stack is gone.
				return true, cloudformation.StackStatusDeleteComplete, nil
			}
			return false, "", err
		}
		if count := len(output.Stacks); count != 1 {
			return false, "", fmt.Errorf("expected exactly 1 stack, got %d", count)
		}
		status := aws.StringValue(output.Stacks[0].StackStatus)
		switch status {
		case cloudformation.StackStatusDeleteComplete:
			return true, status, nil
		default:
			log.Info("Stack is still pending deletion", "id", aws.StringValue(stack.StackId), "status", status)
			return false, status, nil
		}
	})
	if !res.Succeeded {
		return fmt.Errorf("stack %s not deleted after %d attempts, last status %q", aws.StringValue(stack.StackId), res.Attempts, res.Last)
	}
	log.Info("Finished deleting stack", "id", aws.StringValue(stack.StackId))
	return nil
}
