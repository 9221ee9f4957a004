package domain

type secretKey struct {
	namespace string
	name      string
}

// PlanSecrets pairs repository i with credentials i and returns one SecretSpec
// per distinct (namespace, secretName). The first repository to claim a key
// wins; later claims are dropped, never merged. Output order is first-seen.
func PlanSecrets(credentials []Credentials, repos []RepoRecord) []SecretSpec {
	seen := make(map[secretKey]struct{})
	var specs []SecretSpec
	for i, cred := range credentials {
		if i >= len(repos) {
			break
		}
		for _, t := range repos[i].Targets {
			key := secretKey{namespace: t.Namespace, name: t.SecretName}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			specs = append(specs, SecretSpec{
				SecretName:  t.SecretName,
				Namespace:   t.Namespace,
				Credentials: cred,
			})
		}
	}
	return specs
}

// PlanBindings groups every target by (namespace, serviceAccount) and
// accumulates secret names in manifest target order. Duplicate secret names
// are kept. Output order is first-seen.
func PlanBindings(repos []RepoRecord) []ServiceAccountBinding {
	index := make(map[secretKey]int)
	var bindings []ServiceAccountBinding
	for _, r := range repos {
		for _, t := range r.Targets {
			key := secretKey{namespace: t.Namespace, name: t.ServiceAccount}
			i, ok := index[key]
			if !ok {
				i = len(bindings)
				index[key] = i
				bindings = append(bindings, ServiceAccountBinding{
					ServiceAccount: t.ServiceAccount,
					Namespace:      t.Namespace,
				})
			}
			bindings[i].SecretNames = append(bindings[i].SecretNames, t.SecretName)
		}
	}
	return bindings
}
