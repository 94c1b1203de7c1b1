package authz

import (
	"fmt"

	"github.com/wxpay-bridge/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
// viewer 只能查询，operator 可以关单、退款、企业付款。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.AdminRoleViewer,
			Policies: []Policy{
				{Object: "/admin/orders/:out_trade_no", Action: "GET"},
				{Object: "/admin/refunds/:out_refund_no", Action: "GET"},
				{Object: "/admin/transfers/:partner_trade_no", Action: "GET"},
				{Object: "/admin/exchanges", Action: "GET"},
				{Object: "/admin/notifications", Action: "GET"},
				{Object: "/admin/me", Action: "GET"},
				{Object: "/admin/permissions", Action: "GET"},
			},
		},
		{
			Role:     constants.AdminRoleOperator,
			Inherits: []string{constants.AdminRoleViewer},
			Policies: []Policy{
				{Object: "/admin/orders/:out_trade_no/close", Action: "POST"},
				{Object: "/admin/refunds", Action: "POST"},
				{Object: "/admin/transfers", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
