// Package audit records organization-access events (role changes, org switches) as OpenTelemetry
// log records.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	otellog "go.opentelemetry.io/otel/log"
)

// SentinelOrgID is the org_id used for events that have no org (e.g. clearing the selection).
const SentinelOrgID = "_system"

// Actions emitted by this module.
const (
	ActionRoleChanged      = "role_changed"
	ActionRoleChangeDenied = "role_change_denied"
	ActionOrgSwitched      = "organization_switched"
)

// AuditLogger writes a single audit event. LogEvent is best-effort and never fails the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// Logger implements AuditLogger by emitting OTel log records and mirroring them to logrus.
type Logger struct {
	logger otellog.Logger
	log    *logrus.Entry
	now    func() time.Time
}

// NewLogger returns an AuditLogger emitting through provider. provider may be nil; then events are
// only written to l.
func NewLogger(provider otellog.LoggerProvider, l *logrus.Logger) *Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	lg := &Logger{log: l.WithField("component", "audit"), now: time.Now}
	if provider != nil {
		lg.logger = provider.Logger("orgaccess.audit")
	}
	return lg
}

// LogEvent writes one audit entry.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if orgID == "" {
		orgID = SentinelOrgID
	}
	id := uuid.New().String()
	ts := l.now().UTC()

	l.log.WithFields(logrus.Fields{
		"audit_id": id,
		"org_id":   orgID,
		"user_id":  userID,
		"action":   action,
		"resource": resource,
	}).Info(metadata)

	if l.logger == nil {
		return
	}
	rec := otellog.Record{}
	rec.SetTimestamp(ts)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(action)
	if metadata != "" {
		rec.SetBody(otellog.StringValue(metadata))
	}
	rec.AddAttributes(
		otellog.String("audit_id", id),
		otellog.String("org_id", orgID),
		otellog.String("user_id", userID),
		otellog.String("action", action),
		otellog.String("resource", resource),
	)
	l.logger.Emit(ctx, rec)
}

// Nop discards events.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string, string) {}
