package main

import (
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const (
	headerGatewayAuthorized = "X-API-Gateway-Authorized"
	headerUserID            = "X-User-ID"
)

// forwardGatewayIdentity replaces any caller-supplied identity headers with
// the subject API Gateway's JWT authorizer verified. Without an authorizer
// subject the request reaches the router with neither header set.
func forwardGatewayIdentity(req *events.APIGatewayV2HTTPRequest) {
	for name := range req.Headers {
		if strings.EqualFold(name, headerGatewayAuthorized) || strings.EqualFold(name, headerUserID) {
			delete(req.Headers, name)
		}
	}

	if req.RequestContext.Authorizer == nil || req.RequestContext.Authorizer.JWT == nil {
		return
	}
	sub := req.RequestContext.Authorizer.JWT.Claims["sub"]
	if sub == "" {
		return
	}
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Headers[headerGatewayAuthorized] = "true"
	req.Headers[headerUserID] = sub
}
