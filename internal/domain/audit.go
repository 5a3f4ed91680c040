package domain

import "time"

// AuditEntity names the kind of record an audit entry describes.
type AuditEntity string

const (
	EntityMailbox     AuditEntity = "mailbox"
	EntityDomain      AuditEntity = "domain"
	EntityCampaign    AuditEntity = "campaign"
	EntityLead        AuditEntity = "lead"
	EntityRoutingRule AuditEntity = "routing_rule"
)

// Subsystems that write audit entries.
const (
	TriggerHealthMonitor = "health_monitor"
	TriggerEscalation    = "escalation"
	TriggerRecovery      = "recovery_scheduler"
	TriggerRouting       = "routing"
	TriggerGate          = "execution_gate"
	TriggerProcessor     = "processor"
	TriggerOperator      = "operator"
)

// AuditEntry is one append-only decision record.
type AuditEntry struct {
	ID         string      `json:"id" db:"id" dynamodbav:"ID"`
	EntityType AuditEntity `json:"entity_type" db:"entity_type" dynamodbav:"EntityType"`
	EntityID   string      `json:"entity_id" db:"entity_id" dynamodbav:"EntityID"`
	Trigger    string      `json:"trigger" db:"trigger" dynamodbav:"Trigger"`
	Action     string      `json:"action" db:"action" dynamodbav:"Action"`
	Details    string      `json:"details" db:"details" dynamodbav:"Details"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at" dynamodbav:"CreatedAt"`
}
