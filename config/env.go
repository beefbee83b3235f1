package config

import "os"

// Environment selects behavior that differs between deployments.
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

// CurrentEnvironment reads APP_ENV, defaulting to development.
func CurrentEnvironment() Environment {
	switch os.Getenv("APP_ENV") {
	case "production":
		return Production
	case "test":
		return Test
	case "ci":
		return CI
	default:
		return Development
	}
}

func (e Environment) IsProduction() bool {
	return e == Production
}
