package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
)

func (c *cli) purgeCmd() *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete active guests that never posted and have been idle too long",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			maxAge, err := parseAge(olderThan)
			if err != nil {
				return usageError(err.Error())
			}
			guests, _, err := c.stores(cmd.Context())
			if err != nil {
				return err
			}
			n, err := service.NewPurgeWorker(guests, maxAge, c.logger).Purge(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("purged %d stale guests\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "720h", "idle time before a guest is stale (Go duration, or days like 30d)")
	return cmd
}

// parseAge accepts a Go duration or a whole number of days ("30d").
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}
