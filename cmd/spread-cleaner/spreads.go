package main

import (
	"context"
	"fmt"
	"strings"

	"spread_expire/internal/domain/account"
	"spread_expire/internal/domain/spread"
	"spread_expire/internal/errs"
)

// spreadList collects repeated --spread flags.
type spreadList []string

func (l *spreadList) String() string {
	return strings.Join(*l, ",")
}

func (l *spreadList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("empty spread name")
	}
	*l = append(*l, v)
	return nil
}

// resolveSpreads maps the named spreads to codes. With no names it returns
// every account spread except the excluded ones. Any unknown or non-account
// spread fails the whole resolution so nothing runs on a partial selection.
func resolveSpreads(ctx context.Context, codes spread.CodeRepository, named, excluded []string) ([]spread.Code, error) {
	if len(named) > 0 {
		out := make([]spread.Code, 0, len(named))
		seen := make(map[spread.Code]struct{}, len(named))
		for _, name := range named {
			sc, err := codes.Lookup(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("unknown spread %q: %w", name, err)
			}
			if sc.EntityType != account.EntityTypeAccount {
				return nil, fmt.Errorf("%w: spread %q is for %s entities", errs.ErrInvalidArgument, name, sc.EntityType)
			}
			if _, dup := seen[sc.Code]; !dup {
				seen[sc.Code] = struct{}{}
				out = append(out, sc.Code)
			}
		}
		return out, nil
	}

	all, err := codes.ListByEntityType(ctx, account.EntityTypeAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to list account spreads: %w", err)
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		skip[name] = struct{}{}
	}
	out := make([]spread.Code, 0, len(all))
	for _, sc := range all {
		if _, ok := skip[sc.Name]; !ok {
			out = append(out, sc.Code)
		}
	}
	return out, nil
}
