package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"spread_expire/internal/app"
	"spread_expire/internal/domain/calendar"
	"spread_expire/internal/errs"
)

const adminUsage = `commands:
  grant <entity_id> <spread> [YYYY-MM-DD]   add a spread, expiring on the date (default today)
  reschedule <entity_id> <spread> <YYYY-MM-DD>
  revoke <entity_id> <spread>
  show <entity_id>`

type adminCommand struct {
	name     string
	entityID int64
	spread   string
	date     *time.Time
}

func (c adminCommand) mutates() bool {
	return c.name != "show"
}

func parseAdminCommand(args []string) (adminCommand, error) {
	if len(args) < 2 {
		return adminCommand{}, fmt.Errorf("%w: missing arguments\n%s", errs.ErrInvalidArgument, adminUsage)
	}
	cmd := adminCommand{name: strings.ToLower(args[0])}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return adminCommand{}, fmt.Errorf("%w: entity id must be a positive integer, got %q", errs.ErrInvalidArgument, args[1])
	}
	cmd.entityID = id

	want := map[string][2]int{ // min, max argument count
		"grant":      {3, 4},
		"reschedule": {4, 4},
		"revoke":     {3, 3},
		"show":       {2, 2},
	}
	bounds, ok := want[cmd.name]
	if !ok {
		return adminCommand{}, fmt.Errorf("%w: unknown command %q\n%s", errs.ErrInvalidArgument, args[0], adminUsage)
	}
	if len(args) < bounds[0] || len(args) > bounds[1] {
		return adminCommand{}, fmt.Errorf("%w: wrong number of arguments for %s\n%s", errs.ErrInvalidArgument, cmd.name, adminUsage)
	}
	if len(args) > 2 {
		cmd.spread = args[2]
	}
	if len(args) > 3 {
		d, err := time.Parse(time.DateOnly, args[3])
		if err != nil {
			return adminCommand{}, fmt.Errorf("%w: bad date %q, want YYYY-MM-DD", errs.ErrInvalidArgument, args[3])
		}
		cmd.date = &d
	}
	return cmd, nil
}

func (c adminCommand) run(ctx context.Context, admin *app.AdminService, out io.Writer) error {
	switch c.name {
	case "grant":
		return admin.Grant(ctx, c.entityID, c.spread, c.date)
	case "reschedule":
		return admin.Reschedule(ctx, c.entityID, c.spread, *c.date)
	case "revoke":
		return admin.Revoke(ctx, c.entityID, c.spread)
	case "show":
		status, err := admin.Show(ctx, c.entityID)
		if err != nil {
			return err
		}
		writeStatus(out, c.entityID, status)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errs.ErrInvalidArgument, c.name)
}

func writeStatus(out io.Writer, entityID int64, status []app.SpreadStatus) {
	if len(status) == 0 {
		fmt.Fprintf(out, "entity %d has no expiring spreads\n", entityID)
		return
	}
	for _, st := range status {
		fmt.Fprintf(out, "%-24s expires %s\n", st.Spread, calendar.Format(st.ExpireDate))
		for _, rec := range st.Pending {
			fmt.Fprintf(out, "  %-22s notified %s\n", rec.Template, rec.NotifyDate.Format(time.DateTime))
		}
	}
}

// runAdmin executes one operator command in its own transaction.
func runAdmin(ctx context.Context, db *sql.DB, deps adminDeps, cmd adminCommand, commit bool, out io.Writer) error {
	return inTx(ctx, db, commit && cmd.mutates(), func(tx *sql.Tx) error {
		engine := newEngine(tx, deps.policies, deps.logger, nil)
		admin := app.NewAdminService(engine, deps.codes)
		return cmd.run(ctx, admin, out)
	})
}
