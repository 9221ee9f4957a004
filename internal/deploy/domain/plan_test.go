package domain

import (
	"fmt"
	"reflect"
	"testing"
)

func creds(n int) []Credentials {
	out := make([]Credentials, n)
	for i := range out {
		out[i] = Credentials{
			Server:   fmt.Sprintf("registry-%d.example.com", i),
			Username: fmt.Sprintf("user-%d", i),
			Password: "secret",
			Email:    "ops@example.com",
		}
	}
	return out
}

func TestPlanSecrets(t *testing.T) {
	tests := []struct {
		name  string
		repos []RepoRecord
		want  []SecretSpec
	}{
		{
			name:  "no repositories",
			repos: nil,
			want:  nil,
		},
		{
			name: "one secret per distinct namespace and name",
			repos: []RepoRecord{
				{RepoURI: "repo-a", Targets: []BindingTarget{
					{ServiceAccount: "default", SecretName: "pull-a", Namespace: "apps"},
					{ServiceAccount: "worker", SecretName: "pull-a", Namespace: "apps"},
					{ServiceAccount: "default", SecretName: "pull-a", Namespace: "jobs"},
				}},
			},
			want: []SecretSpec{
				{SecretName: "pull-a", Namespace: "apps", Credentials: creds(1)[0]},
				{SecretName: "pull-a", Namespace: "jobs", Credentials: creds(1)[0]},
			},
		},
		{
			name: "first repository claiming a key wins",
			repos: []RepoRecord{
				{RepoURI: "repo-a", Targets: []BindingTarget{{ServiceAccount: "a", SecretName: "s", Namespace: "ns"}}},
				{RepoURI: "repo-b", Targets: []BindingTarget{{ServiceAccount: "b", SecretName: "s", Namespace: "ns"}}},
			},
			want: []SecretSpec{
				{SecretName: "s", Namespace: "ns", Credentials: creds(2)[0]},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanSecrets(creds(len(tt.repos)), tt.repos)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PlanSecrets() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanSecrets_CountMatchesDistinctKeys(t *testing.T) {
	for n := 1; n <= 4; n++ {
		for k := 1; k <= 4; k++ {
			repos := make([]RepoRecord, n)
			distinct := make(map[string]struct{})
			for i := range repos {
				repos[i].RepoURI = fmt.Sprintf("repo-%d", i)
				for j := 0; j < k; j++ {
					// Secret names repeat across repositories and namespaces alternate.
					target := BindingTarget{
						ServiceAccount: fmt.Sprintf("sa-%d", j),
						SecretName:     fmt.Sprintf("secret-%d", j%2),
						Namespace:      fmt.Sprintf("ns-%d", (i+j)%3),
					}
					repos[i].Targets = append(repos[i].Targets, target)
					distinct[target.Namespace+"/"+target.SecretName] = struct{}{}
				}
			}

			got := PlanSecrets(creds(n), repos)
			if len(got) != len(distinct) {
				t.Errorf("n=%d k=%d: got %d secrets, want %d", n, k, len(got), len(distinct))
			}
		}
	}
}

func TestPlanBindings(t *testing.T) {
	tests := []struct {
		name  string
		repos []RepoRecord
		want  []ServiceAccountBinding
	}{
		{
			name: "shared service account accumulates duplicates in order",
			repos: []RepoRecord{
				{RepoURI: "repo-a", Targets: []BindingTarget{{ServiceAccount: "sa", SecretName: "s", Namespace: "ns"}}},
				{RepoURI: "repo-b", Targets: []BindingTarget{{ServiceAccount: "sa", SecretName: "s", Namespace: "ns"}}},
			},
			want: []ServiceAccountBinding{
				{ServiceAccount: "sa", Namespace: "ns", SecretNames: []string{"s", "s"}},
			},
		},
		{
			name: "distinct service accounts get separate bindings",
			repos: []RepoRecord{
				{RepoURI: "repo-a", Targets: []BindingTarget{{ServiceAccount: "sa-1", SecretName: "s", Namespace: "ns"}}},
				{RepoURI: "repo-b", Targets: []BindingTarget{{ServiceAccount: "sa-2", SecretName: "s", Namespace: "ns"}}},
			},
			want: []ServiceAccountBinding{
				{ServiceAccount: "sa-1", Namespace: "ns", SecretNames: []string{"s"}},
				{ServiceAccount: "sa-2", Namespace: "ns", SecretNames: []string{"s"}},
			},
		},
		{
			name: "same service account name in different namespaces",
			repos: []RepoRecord{
				{RepoURI: "repo-a", Targets: []BindingTarget{
					{ServiceAccount: "default", SecretName: "a", Namespace: "one"},
					{ServiceAccount: "default", SecretName: "b", Namespace: "two"},
					{ServiceAccount: "default", SecretName: "c", Namespace: "one"},
				}},
			},
			want: []ServiceAccountBinding{
				{ServiceAccount: "default", Namespace: "one", SecretNames: []string{"a", "c"}},
				{ServiceAccount: "default", Namespace: "two", SecretNames: []string{"b"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanBindings(tt.repos)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PlanBindings() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanBindings_LengthMatchesReferencingTargets(t *testing.T) {
	repos := []RepoRecord{
		{RepoURI: "a", Targets: []BindingTarget{
			{ServiceAccount: "sa", SecretName: "x", Namespace: "ns"},
			{ServiceAccount: "other", SecretName: "y", Namespace: "ns"},
			{ServiceAccount: "sa", SecretName: "z", Namespace: "ns"},
		}},
		{RepoURI: "b", Targets: []BindingTarget{
			{ServiceAccount: "sa", SecretName: "x", Namespace: "ns"},
		}},
	}

	got := PlanBindings(repos)
	if len(got) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(got))
	}
	want := []string{"x", "z", "x"}
	if !reflect.DeepEqual(got[0].SecretNames, want) {
		t.Errorf("secret names = %v, want %v", got[0].SecretNames, want)
	}
}

func TestManifest_RepoURIs(t *testing.T) {
	m := Manifest{Repositories: []RepoRecord{{RepoURI: "one"}, {RepoURI: "two"}}}
	if got := m.RepoURIs(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("RepoURIs() = %v", got)
	}
}
