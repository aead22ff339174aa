package logging

import (
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

const traceparentHeader = "traceparent"

// W3C Trace Context: {version}-{trace-id}-{parent-id}-{trace-flags}
var traceparentRe = regexp.MustCompile(`^([0-9a-f]{2})-([0-9a-f]{32})-([0-9a-f]{16})-([0-9a-f]{2})$`)

// spanContext is the subset of a traceparent header that Cloud Logging understands.
type spanContext struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// parseTraceparent extracts the span context from a traceparent header value.
// Version ff and all-zero trace or span IDs are invalid per the W3C recommendation.
func parseTraceparent(header string) (spanContext, bool) {
	m := traceparentRe.FindStringSubmatch(header)
	if m == nil || m[1] == "ff" {
		return spanContext{}, false
	}
	if m[2] == "00000000000000000000000000000000" || m[3] == "0000000000000000" {
		return spanContext{}, false
	}
	flags, err := strconv.ParseUint(m[4], 16, 8)
	if err != nil {
		return spanContext{}, false
	}
	return spanContext{TraceID: m[2], SpanID: m[3], Sampled: flags&0x01 == 1}, true
}

// resource renders the Cloud Trace resource name for the span's trace.
func (s spanContext) resource(projectID string) string {
	return fmt.Sprintf("projects/%s/traces/%s", projectID, s.TraceID)
}

// fields returns the Cloud Logging special fields that link an entry to its trace.
func (s spanContext) fields(projectID string) []zap.Field {
	return []zap.Field{
		zap.String("logging.googleapis.com/trace", s.resource(projectID)),
		zap.String("logging.googleapis.com/spanId", s.SpanID),
		zap.Bool("logging.googleapis.com/trace_sampled", s.Sampled),
	}
}
