package kernel

// AuthContext is the authenticated caller of a request. It is passed
// explicitly to every service call that needs caller metadata.
type AuthContext struct {
	OwnerID  OwnerID
	Name     string
	Email    string
	Scopes   []string
	ClientIP string
}
