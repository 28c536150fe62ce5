package env_config

import (
	"fmt"
	"os"
)

var (
	PARALLEL_RESTORE = checkBoolEnv("PARALLEL_RESTORE")
	CREATE_SNAPSHOT  = checkBoolEnv("CREATE_SNAPSHOT")
	STORE_SYNC_WRITE = checkBoolEnv("STORE_SYNC_WRITE")
)

func checkBoolEnv(name string) bool {
	s := os.Getenv(name)
	v := s == "true" || s == "1"
	if s != "" {
		fmt.Fprintf(os.Stderr, "%s: %s, %v\n", name, s, v)
	}
	return v
}
