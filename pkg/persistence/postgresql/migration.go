package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions; the full definition lives in the document column
			CREATE TABLE workflow_definitions (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL CHECK (status IN ('draft', 'active', 'suspended', 'archived')),
				version INTEGER NOT NULL CHECK (version >= 1),
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_definitions_status ON workflow_definitions(status);

			CREATE TABLE workflow_instances (
				id VARCHAR(64) PRIMARY KEY,
				definition_id VARCHAR(64) NOT NULL,
				entity_type VARCHAR(255) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				status VARCHAR(32) NOT NULL,
				document JSONB NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_instances_status ON workflow_instances(status);
			CREATE INDEX idx_workflow_instances_entity ON workflow_instances(entity_type, entity_id);

			CREATE TABLE workflow_approvals (
				id VARCHAR(64) PRIMARY KEY,
				instance_id VARCHAR(64) NOT NULL,
				step_order INTEGER NOT NULL,
				approver_id VARCHAR(255) NOT NULL DEFAULT '',
				approver_role VARCHAR(255) NOT NULL DEFAULT '',
				decision VARCHAR(16) NOT NULL CHECK (decision IN ('pending', 'approved', 'rejected')),
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_approvals_instance ON workflow_approvals(instance_id);
			CREATE INDEX idx_workflow_approvals_approver ON workflow_approvals(approver_id, decision);
			CREATE INDEX idx_workflow_approvals_role ON workflow_approvals(approver_role, decision);
		`,
	}
}
