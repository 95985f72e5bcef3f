package slate

import "runtime/debug"

// safeCall invokes fn with panic recovery. Used on best-effort paths
// (shutdown handler drain) where one failing callback must not abort the
// rest of the teardown.
func safeCall(context string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log().Error("recovered panic", "context", context, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
