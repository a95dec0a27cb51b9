package policy

import (
	"testing"
	"time"

	"github.com/Keksclan/goRawrStash/ratelimit"
)

func TestResolve_ExactMatch(t *testing.T) {
	r := NewResolver(
		Group("catalog").
			Exact("thing").
			Policy(Policy{RateLimit: &ratelimit.Rule{RPS: 5, Burst: 1}}),
	)

	name, pol, ok := r.Resolve("thing")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "catalog" {
		t.Fatalf("got group %q, want %q", name, "catalog")
	}
	if pol.RateLimit == nil || pol.RateLimit.RPS != 5 {
		t.Fatalf("unexpected rate limit: %+v", pol.RateLimit)
	}
}

func TestResolve_PrefixMatch(t *testing.T) {
	r := NewResolver(
		Group("users").
			Prefix("user.").
			Policy(Policy{CreatorTimeout: 5 * time.Second}),
	)

	name, pol, ok := r.Resolve("user.collection")
	if !ok {
		t.Fatal("expected a match")
	}
	if name != "users" {
		t.Fatalf("got group %q, want %q", name, "users")
	}
	if pol.CreatorTimeout != 5*time.Second {
		t.Fatalf("got timeout %v, want %v", pol.CreatorTimeout, 5*time.Second)
	}
}

func TestResolve_RegexMatch(t *testing.T) {
	r := NewResolver(Group("versioned").Regex(`\.v[0-9]+$`))

	if _, _, ok := r.Resolve("thing.v2"); !ok {
		t.Fatal("expected a regex match")
	}
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewResolver(Group("catalog").Exact("thing"))

	if _, _, ok := r.Resolve("family"); ok {
		t.Fatal("expected no match")
	}
}

func TestResolve_NilResolver(t *testing.T) {
	var r *Resolver
	if _, _, ok := r.Resolve("thing"); ok {
		t.Fatal("nil resolver must not match")
	}
}

func TestResolve_Priority(t *testing.T) {
	r := NewResolver(
		Group("regex").Regex(`^thing`),
		Group("prefix").Prefix("th"),
		Group("longer-prefix").Prefix("thing"),
		Group("exact").Exact("thing"),
	)

	tests := []struct {
		namespace string
		want      string
	}{
		{"thing", "exact"},
		{"thingfamily", "longer-prefix"},
		{"thread", "prefix"},
	}
	for _, tt := range tests {
		if got, _, _ := r.Resolve(tt.namespace); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.namespace, got, tt.want)
		}
	}
}

func TestResolve_TieGoesToFirstGroup(t *testing.T) {
	r := NewResolver(
		Group("first").Prefix("thing"),
		Group("second").Prefix("thing"),
	)
	if got, _, _ := r.Resolve("things"); got != "first" {
		t.Fatalf("got %q, want first", got)
	}
}
