package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE campaigns (
				id UUID PRIMARY KEY,
				owner VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'paused', 'completed')),
				calling_hours_start CHAR(5) NOT NULL,
				calling_hours_end CHAR(5) NOT NULL,
				timezone VARCHAR(64) NOT NULL,
				max_attempts INT NOT NULL DEFAULT 3,
				max_concurrent_calls INT NOT NULL DEFAULT 10,
				workflow_id UUID,
				pause_reason TEXT,
				paused_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_campaigns_status ON campaigns(status);
			CREATE INDEX idx_campaigns_owner ON campaigns(owner);

			CREATE TABLE leads (
				id UUID PRIMARY KEY,
				owner VARCHAR(255) NOT NULL,
				campaign_id UUID,
				phone_number VARCHAR(20) NOT NULL,
				status VARCHAR(50) NOT NULL,
				do_not_call BOOLEAN NOT NULL DEFAULT FALSE,
				disposition VARCHAR(50),
				last_contacted_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_leads_owner_status ON leads(owner, status);
			CREATE INDEX idx_leads_campaign_id ON leads(campaign_id);
			CREATE INDEX idx_leads_do_not_call ON leads(do_not_call);

			CREATE TABLE automation_rules (
				id UUID PRIMARY KEY,
				owner VARCHAR(255) NOT NULL,
				campaign_id UUID,
				rule_type VARCHAR(100) NOT NULL,
				conditions JSONB DEFAULT '{}',
				actions JSONB DEFAULT '{}',
				days_of_week JSONB DEFAULT '[]',
				time_windows JSONB DEFAULT '[]',
				priority INT NOT NULL DEFAULT 0,
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_rules_enabled_priority ON automation_rules(enabled, priority DESC);

			CREATE TABLE dial_queue (
				id UUID PRIMARY KEY,
				campaign_id UUID NOT NULL,
				lead_id UUID NOT NULL,
				phone_number VARCHAR(20) NOT NULL,
				priority INT NOT NULL DEFAULT 0,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'calling', 'completed', 'failed', 'paused')),
				scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
				attempts INT NOT NULL DEFAULT 0,
				max_attempts INT NOT NULL DEFAULT 3,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_dial_queue_pending ON dial_queue(status, priority DESC, scheduled_at);
			CREATE INDEX idx_dial_queue_campaign_lead ON dial_queue(campaign_id, lead_id);

			-- Hard admission invariant: one open entry per (campaign, lead).
			CREATE UNIQUE INDEX idx_dial_queue_open_unique
				ON dial_queue(campaign_id, lead_id)
				WHERE status IN ('pending', 'calling');

			CREATE TABLE call_records (
				id UUID PRIMARY KEY,
				campaign_id UUID NOT NULL,
				lead_id UUID NOT NULL,
				phone_number VARCHAR(20),
				status VARCHAR(50) NOT NULL,
				outcome VARCHAR(50),
				duration_seconds INT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE,
				ended_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_call_records_campaign_created ON call_records(campaign_id, created_at);
			CREATE INDEX idx_call_records_lead_created ON call_records(lead_id, created_at);
			CREATE INDEX idx_call_records_status ON call_records(status);

			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				owner VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE workflow_steps (
				id UUID NOT NULL,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_number INT NOT NULL,
				step_type VARCHAR(50) NOT NULL CHECK (step_type IN ('call', 'sms', 'ai_sms', 'wait', 'condition')),
				config JSONB DEFAULT '{}',
				PRIMARY KEY (workflow_id, id)
			);

			CREATE UNIQUE INDEX idx_workflow_steps_number ON workflow_steps(workflow_id, step_number);

			CREATE TABLE lead_workflow_progress (
				id UUID PRIMARY KEY,
				lead_id UUID NOT NULL,
				workflow_id UUID NOT NULL,
				campaign_id UUID,
				current_step_id UUID,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'paused', 'completed', 'removed')),
				next_action_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				last_action_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				removal_reason TEXT
			);

			CREATE INDEX idx_progress_due ON lead_workflow_progress(status, next_action_at);
			CREATE INDEX idx_progress_lead ON lead_workflow_progress(lead_id);

			-- One live journey per (lead, workflow).
			CREATE UNIQUE INDEX idx_progress_live_unique
				ON lead_workflow_progress(lead_id, workflow_id)
				WHERE status IN ('active', 'paused');

			CREATE TABLE compliance_violations (
				id UUID PRIMARY KEY,
				campaign_id UUID NOT NULL,
				violation_type VARCHAR(50) NOT NULL,
				reason TEXT,
				detected_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_violations_campaign ON compliance_violations(campaign_id, detected_at);
		`,
	}
}
