package util

import (
	"os"
	"strings"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// OverrideFromEnvironment replaces target with the named variable when it is set
func OverrideFromEnvironment(env map[string]string, name string, target *string) {
	if value := env[name]; value != "" {
		*target = value
	}
}
