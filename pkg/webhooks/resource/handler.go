// Package resource implements the validating admission handler for
// workload resources.
package resource

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	admissionv1 "k8s.io/api/admission/v1"

	"github.com/imageguard/imageguard/pkg/engine"
	"github.com/imageguard/imageguard/pkg/policy"
	admissionutils "github.com/imageguard/imageguard/pkg/utils/admission"
	"github.com/imageguard/imageguard/pkg/webhooks/handlers"
	"github.com/imageguard/imageguard/pkg/workload"
)

type handler struct {
	policy *policy.Policy
}

// NewHandler returns the admission handler enforcing the given compiled
// policy.
func NewHandler(pol *policy.Policy) handlers.AdmissionHandler {
	h := handler{policy: pol}
	return h.validate
}

func (h handler) validate(_ context.Context, logger logr.Logger, request *admissionv1.AdmissionRequest, _ time.Time) *admissionv1.AdmissionResponse {
	podSpec, err := workload.ExtractPodSpec(request.Kind.Kind, request.Object.Raw)
	if err != nil {
		// objects the policy cannot understand are never blocked
		logger.V(2).Info("skipping resource", "reason", err.Error())
		return admissionutils.Response(true)
	}
	if podSpec == nil {
		return admissionutils.Response(true)
	}
	verdict := engine.ValidatePodSpec(podSpec, h.policy)
	if verdict.Allowed {
		return admissionutils.Response(true)
	}
	logger.V(4).Info("rejecting workload", "resource", admissionutils.GetResourceName(request), "message", verdict.Message())
	return admissionutils.ResponseFailure(verdict.Message())
}
