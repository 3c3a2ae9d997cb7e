package deployments

import (
	"github.com/JaimeStill/vertex-agent/pkg/query"
	"github.com/JaimeStill/vertex-agent/pkg/repository"
)

var projection = query.NewProjectionMap("public", "deployments", "d").
	Project("id", "Id").
	Project("agent_id", "AgentId").
	Project("deployment_type", "Type").
	Project("version", "Version").
	Project("project_id", "ProjectId").
	Project("region", "Region").
	Project("resource_name", "ResourceName").
	Project("status", "Status").
	Project("endpoint_url", "EndpointUrl").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, agent_id, deployment_type, version, project_id, region,
	resource_name, status, endpoint_url, error, created_at, updated_at`

var defaultSort = query.SortField{Field: "Version", Descending: true}

func scanDeployment(s repository.Scanner) (Deployment, error) {
	var d Deployment
	err := s.Scan(
		&d.ID,
		&d.AgentID,
		&d.Type,
		&d.Version,
		&d.ProjectID,
		&d.Region,
		&d.ResourceName,
		&d.Status,
		&d.EndpointURL,
		&d.Error,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}
