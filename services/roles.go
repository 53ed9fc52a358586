package services

// Acting-principal roles supplied by the identity collaborator.
const (
	RoleUser        = "user"
	RoleCoordinator = "coordinator"
	RoleAgency      = "agency"
)
