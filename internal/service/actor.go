package service

import "paname-consulting/backend/internal/model"

// Actor 经过认证的调用方，由 JWT 中间件注入
type Actor struct {
	UserID string
	Role   model.Role
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// ── 权限检查：每个操作的第一步，先于任何业务规则 ──

func requireAuthenticated(a Actor) error {
	if a.UserID == "" || !a.Role.Valid() {
		return newError(ErrForbidden, "authentification requise")
	}
	return nil
}

func requireAdmin(a Actor) error {
	if err := requireAuthenticated(a); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return newError(ErrForbidden, "réservé aux administrateurs")
	}
	return nil
}

func requireOwnerOrAdmin(a Actor, ownerID string) error {
	if err := requireAuthenticated(a); err != nil {
		return err
	}
	if !a.IsAdmin() && a.UserID != ownerID {
		return newError(ErrForbidden, "cette ressource appartient à un autre utilisateur")
	}
	return nil
}
