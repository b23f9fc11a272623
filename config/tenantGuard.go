package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/franchise_analytics/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin scopes queries/updates/deletes to the franchise_id carried in the
// context when the model has a franchise_id column.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include franchise_id manually.
// - Fan-out reads over every franchise bypass it via appctx.ContextKeySkipTenantScope.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); ok && v {
		return
	}
	franchiseID, _ := appctx.GetString(ctx, appctx.ContextKeyFranchiseId)
	if franchiseID == "" {
		return
	}

	if db.Statement.Schema == nil {
		return
	}
	hasFranchiseID := false
	for _, f := range db.Statement.Schema.Fields {
		if strings.EqualFold(f.DBName, "franchise_id") {
			hasFranchiseID = true
			break
		}
	}
	if !hasFranchiseID {
		return
	}

	// Don't duplicate an explicit tenant filter.
	if whereHasFranchiseID(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "franchise_id"},
				Value:  franchiseID,
			},
		},
	})
}

// SkipTenantScope marks ctx so the tenant guard leaves queries untouched.
func SkipTenantScope(ctx context.Context) context.Context {
	return appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
}

func whereHasFranchiseID(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasFranchiseID(e) {
			return true
		}
	}
	return false
}

func exprHasFranchiseID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsFranchiseID(v.Column)
	case clause.Neq:
		return colIsFranchiseID(v.Column)
	case clause.IN:
		return colIsFranchiseID(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasFranchiseID(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasFranchiseID(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "franchise_id")
	default:
		return false
	}
}

func colIsFranchiseID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "franchise_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "franchise_id")
	default:
		return false
	}
}
