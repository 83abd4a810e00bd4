package tunnel

// Hooks for the external tunnel_test package.
var (
	StubSecret    = stubSecret
	StartJumpHost = startJumpHost
)
