package phonebook

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/simbook/internal/cache"
	"github.com/S0me0neR0man/simbook/internal/record"
)

var ErrAuthCodeRequired = errors.New("auth code required")

// Authorizer decides whether a write to fg may proceed with authCode. The
// code itself is checked by the card.
type Authorizer interface {
	Authorize(fg int, authCode string) error
}

// RestrictedGroups file groups that can't be written without an auth code.
type RestrictedGroups map[int]bool

// DefaultRestricted FDN needs PIN2.
func DefaultRestricted() RestrictedGroups {
	return RestrictedGroups{record.EFFdn: true}
}

func (r RestrictedGroups) Authorize(fg int, authCode string) error {
	if r[fg] && authCode == "" {
		return fmt.Errorf("%w: %04X", ErrAuthCodeRequired, fg)
	}
	return nil
}

type AuthUnit struct {
	authorizer Authorizer
	sugar      *zap.SugaredLogger
}

func NewAuthUnit(authorizer Authorizer, logger *zap.Logger) *AuthUnit {
	return &AuthUnit{authorizer: authorizer, sugar: logger.Sugar()}
}

func (a *AuthUnit) String() string {
	return "AuthUnit"
}

func (a *AuthUnit) WriteMiddleware(next WriteHandler) WriteHandler {
	return WriteHandlerFunc(func(ctx context.Context, req *WriteRequest) (cache.UpdateResult, error) {
		if err := a.authorizer.Authorize(req.FileGroup, req.AuthCode); err != nil {
			a.sugar.Infow("write refused", "op", req.ID, "fg", fmt.Sprintf("%04X", req.FileGroup), "err", err)
			return cache.UpdateResult{}, err
		}
		return next.Write(ctx, req)
	})
}

type AuditUnit struct {
	sugar *zap.SugaredLogger
}

func NewAuditUnit(logger *zap.Logger) *AuditUnit {
	return &AuditUnit{sugar: logger.Sugar()}
}

func (a *AuditUnit) String() string {
	return "AuditUnit"
}

func (a *AuditUnit) WriteMiddleware(next WriteHandler) WriteHandler {
	return WriteHandlerFunc(func(ctx context.Context, req *WriteRequest) (cache.UpdateResult, error) {
		res, err := next.Write(ctx, req)
		kv := []any{"op", req.ID, "fg", fmt.Sprintf("%04X", req.FileGroup), "index", res.Index}
		if req.Before != nil {
			kv = append(kv, "search", req.Before.String())
		}
		if err != nil {
			a.sugar.Infow("write failed", append(kv, "err", err)...)
		} else {
			a.sugar.Infow("write done", append(kv, "record", res.Record.String())...)
		}
		return res, err
	})
}
