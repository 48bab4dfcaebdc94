package rbac

// Default policy. A trailing "*" matches any permission with that prefix.
var RolePermissions = map[string][]string{
	"participant": {
		"survey:view",
		"answers:submit",
		"answers:view-own",
		"assessment-answers:*",
		"user:change_password",
	},
	"staff": {
		"survey:create",
		"survey:view",
		"answers:view-all",
		"answers:export",
		"answers:import",
		"participants:search",
		"events:view",
		"user:change_password",
	},
	"admin": {
		"*",
	},
}
