package handlers

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	admissionv1 "k8s.io/api/admission/v1"

	"github.com/imageguard/imageguard/pkg/metrics"
)

// WithMetrics records the verdict and latency of every request passing
// through the handler.
func (inner AdmissionHandler) WithMetrics(recorder *metrics.Recorder) AdmissionHandler {
	if recorder == nil {
		return inner
	}
	return func(ctx context.Context, logger logr.Logger, request *admissionv1.AdmissionRequest, startTime time.Time) *admissionv1.AdmissionResponse {
		response := inner(ctx, logger, request, startTime)
		allowed := response == nil || response.Allowed
		recorder.RecordRequest(request.Kind.Kind, allowed, startTime)
		return response
	}
}
