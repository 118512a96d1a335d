// Package policy decides whether a login must be refused because of the
// device it comes from. The rule is expressed in Rego and evaluated in-process.
package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/open-policy-agent/opa/v1/rego"

	"workguard/internal/auth/models"
	"workguard/internal/device"
)

const loginQuery = "data.workguard.login.mobile_restricted"

// loginPolicy restricts employees to desktop browsers. Admins and team
// leaders may sign in from any device.
const loginPolicy = `package workguard.login

default mobile_restricted := false

mobile_restricted if {
	input.device.strict_mobile
	input.user.role == "EMPLOYEE"
}
`

// Input is what the policy sees about one login.
type Input struct {
	Role      models.Role
	UserAgent string
}

// Evaluator runs the prepared login policy.
type Evaluator struct {
	query  rego.PreparedEvalQuery
	logger *slog.Logger
}

// New compiles the login policy once.
func New(ctx context.Context, logger *slog.Logger) (*Evaluator, error) {
	q, err := rego.New(
		rego.Query(loginQuery),
		rego.Module("workguard_login.rego", loginPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare login policy: %w", err)
	}
	return &Evaluator{query: q, logger: logger}, nil
}

// MobileRestricted reports whether the login must be refused. If the engine
// fails the decision falls back to the same rule evaluated in Go, so a
// policy engine fault never opens or closes the gate differently.
func (e *Evaluator) MobileRestricted(ctx context.Context, in Input) bool {
	restricted, err := e.eval(ctx, in)
	if err != nil {
		e.logger.WarnContext(ctx, "login policy evaluation failed, using built-in rule",
			"error", err,
		)
		return Fallback(in)
	}
	return restricted
}

func (e *Evaluator) eval(ctx context.Context, in Input) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{
		"user": map[string]any{
			"role": string(in.Role),
		},
		"device": map[string]any{
			"strict_mobile": device.IsMobileUserAgent(in.UserAgent),
			"user_agent":    in.UserAgent,
		},
	}))
	if err != nil {
		return false, fmt.Errorf("eval login policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("login policy returned no result")
	}
	restricted, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("login policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return restricted, nil
}

// Fallback is the login rule without the policy engine.
func Fallback(in Input) bool {
	return in.Role == models.RoleEmployee && device.IsMobileUserAgent(in.UserAgent)
}
