package policy

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workguard/internal/auth/models"
)

const (
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	desktopUA = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

func TestMobileRestricted(t *testing.T) {
	ctx := context.Background()
	eval, err := New(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{"employee on iphone", Input{Role: models.RoleEmployee, UserAgent: iphoneUA}, true},
		{"employee on desktop", Input{Role: models.RoleEmployee, UserAgent: desktopUA}, false},
		{"admin on iphone", Input{Role: models.RoleAdmin, UserAgent: iphoneUA}, false},
		{"team leader on iphone", Input{Role: models.RoleTeamLeader, UserAgent: iphoneUA}, false},
		{"employee with empty agent", Input{Role: models.RoleEmployee}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eval.MobileRestricted(ctx, tt.in))
			assert.Equal(t, tt.want, Fallback(tt.in), "built-in rule must agree with the policy")
		})
	}
}
