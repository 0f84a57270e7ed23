package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
	"github.com/DovakiinZ/Sin-City-sub001/internal/middleware"
	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
	"github.com/DovakiinZ/Sin-City-sub001/pkg/fingerprint"
)

func (c *cli) resolveCmd() *cobra.Command {
	var email, fp string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve this host (or --fingerprint) to a guest record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var sig *fingerprint.Signature
			if fp == "" {
				derived := deriveFingerprint()
				fp, sig = derived.Hash, &derived.Signature
			} else {
				canonical, msg := middleware.ValidateFingerprint(fp)
				if msg != "" {
					return usageError(msg)
				}
				fp = canonical
			}

			guests, audit, err := c.stores(ctx)
			if err != nil {
				return err
			}
			local, err := c.localStore()
			if err != nil {
				return err
			}

			session, err := service.NewSessionIssuer(kvstore.NewMemoryStore()).Token(ctx)
			if err != nil {
				return err
			}

			var enricher service.Enricher
			if c.enrichmentURL != "" {
				enricher = service.NewRemoteEnricher(c.enrichmentURL, 5*time.Second)
			}

			tasks := service.NewTaskRunner(c.logger, 5*time.Second)
			defer tasks.Wait()

			res, err := service.NewResolver(guests, audit, local, enricher, tasks, c.logger).
				Resolve(ctx, service.ResolveInput{
					Fingerprint:  fp,
					Signature:    sig,
					Email:        email,
					SessionToken: session,
				})
			if err != nil {
				return err
			}
			return c.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email to attach if the guest has none")
	cmd.Flags().StringVar(&fp, "fingerprint", "", "resolve this fingerprint hash instead of the host's")
	return cmd
}
