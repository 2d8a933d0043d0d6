package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Clean exit, policy passed
	ExitPolicyFailed  = 1 // Gate policy thresholds exceeded
	ExitUserError     = 2 // Invalid arguments, configuration or input
	ExitInternalError = 4 // Unexpected internal error
)
