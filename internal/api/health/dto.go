package health

type SupervisorKind string

const (
	SupervisorLog   SupervisorKind = "log"
	SupervisorRedis SupervisorKind = "redis"
	SupervisorExit  SupervisorKind = "exit"
	SupervisorEmail SupervisorKind = "email"
)

const (
	LivenessHealthy   = "healthy"
	LivenessUnhealthy = "unhealthy"
)
