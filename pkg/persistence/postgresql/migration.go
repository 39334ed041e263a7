package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'unpublished')),
				version INTEGER NOT NULL DEFAULT 0,
				variables JSONB,
				metadata JSONB,
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);

			CREATE TABLE workflow_nodes (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				node_type VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				config JSONB DEFAULT '{}',
				enabled BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_workflow_id ON workflow_nodes(workflow_id);
			CREATE INDEX idx_workflow_nodes_type ON workflow_nodes(node_type);

			CREATE TABLE workflow_edges (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				source_node VARCHAR(255) NOT NULL,
				target_node VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_edges_workflow_id ON workflow_edges(workflow_id);
			CREATE UNIQUE INDEX idx_workflow_edges_unique ON workflow_edges(workflow_id, source_node, target_node);
		`,
		2: `
			-- Execution contexts, including suspended runs awaiting approval
			CREATE TABLE execution_contexts (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id),
				status VARCHAR(50) NOT NULL,
				trigger_data JSONB DEFAULT '{}',
				variables JSONB DEFAULT '{}',
				node_results JSONB DEFAULT '{}',
				node_statuses JSONB DEFAULT '{}',
				suspension JSONB,
				error_message TEXT,
				metadata JSONB DEFAULT '{}',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_execution_contexts_workflow_id ON execution_contexts(workflow_id);
			CREATE INDEX idx_execution_contexts_status ON execution_contexts(status);
		`,
		3: `
			-- Sizing decisions with an optimistic version counter
			CREATE TABLE decisions (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				mode VARCHAR(50) NOT NULL,
				market_id VARCHAR(255) NOT NULL,
				side VARCHAR(10) NOT NULL,
				status VARCHAR(50) NOT NULL,
				action VARCHAR(10) NOT NULL,
				payload JSONB NOT NULL,
				version INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_decisions_execution_id ON decisions(execution_id);
			CREATE INDEX idx_decisions_status ON decisions(status);
			CREATE INDEX idx_decisions_market_id ON decisions(market_id);
		`,
		4: `
			-- Per-node execution traces, one row per (execution, node)
			CREATE TABLE node_traces (
				execution_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				node_type VARCHAR(255) NOT NULL,
				trace JSONB NOT NULL,
				captured_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (execution_id, node_id)
			);

			CREATE INDEX idx_node_traces_execution_id ON node_traces(execution_id);
		`,
	}
}
