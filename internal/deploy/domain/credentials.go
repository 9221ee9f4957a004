package domain

// Credentials grants pull access to a private container registry.
type Credentials struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// SecretSpec is one image pull secret to create. It is keyed by
// (Namespace, SecretName).
type SecretSpec struct {
	SecretName  string
	Namespace   string
	Credentials Credentials
}

// ServiceAccountBinding is the full ordered list of image pull secrets a
// service account must reference. It is keyed by (Namespace, ServiceAccount).
type ServiceAccountBinding struct {
	ServiceAccount string
	Namespace      string
	SecretNames    []string
}
