// Package awsapi builds the AWS sessions and configs used by the reclamation
// commands. Credentials and region are always passed in explicitly; nothing
// here reads ambient process state, so callers stay testable with iface fakes.
package awsapi

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
)

// NewSession returns a session tagged with the automation's user agent so
// resource-leak hunts in CloudTrail can attribute the calls.
func NewSession(agent string) *session.Session {
	awsSession := session.Must(session.NewSession())
	awsSession.Handlers.Build.PushBackNamed(request.NamedHandler{
		Name: "automation-capi.user-agent",
		Fn:   request.MakeAddToUserAgentHandler("stolostron.io automation-capi", agent),
	})
	return awsSession
}

// NewConfig builds a config scoped to one region. When credentialsFile is
// empty the SDK's default chain applies, which is what CI environments use.
func NewConfig(credentialsFile, region string) *aws.Config {
	awsConfig := aws.NewConfig().WithRegion(region)
	if credentialsFile != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewSharedCredentials(credentialsFile, "default"))
	}
	awsConfig.Retryer = client.DefaultRetryer{
		NumMaxRetries:    10,
		MinRetryDelay:    5 * time.Second,
		MinThrottleDelay: 5 * time.Second,
	}
	return awsConfig
}
