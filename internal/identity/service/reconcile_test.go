package service

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func classifyRecord(email, username string) *domain.Identity {
	return &domain.Identity{
		Email:            email,
		Username:         username,
		Phone:            "111",
		Name:             "Alice",
		Role:             "member",
		SecurityQuestion: "first pet?",
		AuthMethod:       domain.AuthMethodEmail,
	}
}

func renderClassification(c Classification) string {
	out := string(c.Scenario)
	if len(c.Conflicts) == 0 {
		return out
	}
	out += " ["
	for i, cf := range c.Conflicts {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s(%s|%s)", cf.Field, cf.Local, cf.Remote)
	}
	return out + "]"
}

func TestClassifyMatrix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	bools := []bool{false, true}
	for _, hasLocal := range bools {
		for _, hasRemote := range bools {
			for _, connected := range bools {
				for _, reachable := range bools {
					in := ClassifyInput{
						Connected: connected,
						Reachable: reachable,
						LoginKey:  "alice@example.com",
						KeyKind:   domain.KeyEmail,
					}
					if hasLocal {
						in.Local = classifyRecord("alice@example.com", "alice")
					}
					if hasRemote {
						in.Remote = classifyRecord("alice@example.com", "alice")
					}
					fmt.Fprintf(&buf, "local=%t remote=%t connected=%t reachable=%t -> %s\n",
						hasLocal, hasRemote, connected, reachable, renderClassification(Classify(in)))
				}
			}
		}
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "classify_matrix", buf.Bytes())
}

func TestClassifyRecordPairs(t *testing.T) {
	t.Parallel()

	with := func(r *domain.Identity, fn func(*domain.Identity)) *domain.Identity {
		fn(r)
		return r
	}

	tests := []struct {
		name   string
		local  *domain.Identity
		remote *domain.Identity
	}{
		{
			name:   "same email, same fields",
			local:  classifyRecord("alice@example.com", "alice"),
			remote: classifyRecord("alice@example.com", "alice"),
		},
		{
			name:   "email differs only in case",
			local:  classifyRecord("Alice@Example.com", "alice"),
			remote: classifyRecord("alice@example.com", "alice"),
		},
		{
			name:   "username differs only in case",
			local:  classifyRecord("alice@example.com", "Alice"),
			remote: classifyRecord("alice@example.com", "alice"),
		},
		{
			name:   "same email, different username",
			local:  classifyRecord("alice@example.com", "alice"),
			remote: classifyRecord("alice@example.com", "alice2"),
		},
		{
			name:   "same email, different phone",
			local:  classifyRecord("alice@example.com", "alice"),
			remote: with(classifyRecord("alice@example.com", "alice"), func(r *domain.Identity) { r.Phone = "222" }),
		},
		{
			name:  "same email, role and auth method differ",
			local: classifyRecord("alice@example.com", "alice"),
			remote: with(classifyRecord("alice@example.com", "alice"), func(r *domain.Identity) {
				r.Role = "admin"
				r.AuthMethod = domain.AuthMethodPhone
			}),
		},
		{
			name:   "same email, username and name differ",
			local:  classifyRecord("alice@example.com", "alice"),
			remote: with(classifyRecord("alice@example.com", "alice2"), func(r *domain.Identity) { r.Name = "Al" }),
		},
		{
			name:   "same username, different email",
			local:  classifyRecord("alice@example.com", "alice"),
			remote: classifyRecord("alice@other.example", "alice"),
		},
	}

	var buf bytes.Buffer
	for _, tt := range tests {
		c := Classify(ClassifyInput{
			Local:     tt.local,
			Remote:    tt.remote,
			Connected: true,
			Reachable: true,
			LoginKey:  "alice",
			KeyKind:   domain.KeyUsername,
		})
		require.Equal(t, c.Scenario.RequiresResolution(), len(c.Conflicts) > 0, tt.name)
		fmt.Fprintf(&buf, "%s -> %s\n", tt.name, renderClassification(c))
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "classify_pairs", buf.Bytes())
}
