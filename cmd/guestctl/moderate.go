package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DovakiinZ/Sin-City-sub001/internal/middleware"
	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

type usageError string

func (e usageError) Error() string { return string(e) }

func (c *cli) moderation(cmd *cobra.Command) (*service.ModerationService, error) {
	guests, audit, err := c.stores(cmd.Context())
	if err != nil {
		return nil, err
	}
	return service.NewModerationService(guests, audit, nil, c.logger), nil
}

func guestIDArg(args []string) (string, error) {
	id, msg := middleware.ValidateGuestID(args[0])
	if msg != "" {
		return "", usageError(msg)
	}
	return id, nil
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "status <guest-id> <active|restricted|blocked>",
		Short:     "Change a guest's moderation status",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(model.StatusActive), string(model.StatusRestricted), string(model.StatusBlocked)},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guestIDArg(args)
			if err != nil {
				return err
			}
			svc, err := c.moderation(cmd)
			if err != nil {
				return err
			}
			g, err := svc.SetStatus(cmd.Context(), id, model.GuestStatus(args[1]), c.actor)
			if err != nil {
				return err
			}
			return c.printJSON(g)
		},
	}
}

func (c *cli) trustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <guest-id> <score>",
		Short: "Set a guest's trust score (clamped to 0-100)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guestIDArg(args)
			if err != nil {
				return err
			}
			score, err := strconv.Atoi(args[1])
			if err != nil {
				return usageError("score must be an integer")
			}
			svc, err := c.moderation(cmd)
			if err != nil {
				return err
			}
			g, err := svc.SetTrustScore(cmd.Context(), id, score, c.actor)
			if err != nil {
				return err
			}
			return c.printJSON(g)
		},
	}
}

func (c *cli) flagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flag <guest-id> <flag>",
		Short: "Toggle a moderation flag on a guest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guestIDArg(args)
			if err != nil {
				return err
			}
			flag, msg := middleware.ValidateFlag(args[1])
			if msg != "" {
				return usageError(msg)
			}
			svc, err := c.moderation(cmd)
			if err != nil {
				return err
			}
			g, err := svc.ToggleFlag(cmd.Context(), id, flag, c.actor)
			if err != nil {
				return err
			}
			return c.printJSON(g)
		},
	}
}

func (c *cli) verifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email <guest-id> <email>",
		Short: "Record an email address as verified for a guest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guestIDArg(args)
			if err != nil {
				return err
			}
			svc, err := c.moderation(cmd)
			if err != nil {
				return err
			}
			g, err := svc.VerifyEmail(cmd.Context(), id, args[1], c.actor)
			if err != nil {
				return err
			}
			return c.printJSON(g)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var (
		status        string
		flag          string
		limit, offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List guests, most recently seen first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.moderation(cmd)
			if err != nil {
				return err
			}
			guests, err := svc.List(cmd.Context(), model.GuestFilter{
				Status: model.GuestStatus(status),
				Flag:   flag,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFINGERPRINT\tSTATUS\tPOSTS\tTRUST\tVERIFIED\tFLAGS\tLAST SEEN")
			for _, g := range guests {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\t%v\t%s\n",
					g.ID, g.Fingerprint, g.Status, g.PostCount, g.TrustScore, g.EmailVerified,
					g.Flags, g.LastSeen.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only guests with this status")
	cmd.Flags().StringVar(&flag, "flag", "", "only guests carrying this flag")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <guest-id>",
		Short: "Show a guest's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := guestIDArg(args)
			if err != nil {
				return err
			}
			svc, err := c.moderation(cmd)
			if err != nil {
				return err
			}
			events, err := svc.History(cmd.Context(), id, limit)
			if errors.Is(err, service.ErrGuestNotFound) {
				return fmt.Errorf("guest %s not found", id)
			}
			if err != nil {
				return err
			}
			return c.printJSON(events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum events")
	return cmd
}
