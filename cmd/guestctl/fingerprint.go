package main

import (
	"github.com/spf13/cobra"

	"github.com/DovakiinZ/Sin-City-sub001/internal/kvstore"
	"github.com/DovakiinZ/Sin-City-sub001/internal/service"
	"github.com/DovakiinZ/Sin-City-sub001/pkg/fingerprint"
)

// deriveFingerprint fingerprints the host guestctl runs on.
func deriveFingerprint() fingerprint.Fingerprint {
	return fingerprint.NewDeriver(fingerprint.HostEnvironment{}, fingerprint.GGCanvas{}).Derive()
}

func (c *cli) fingerprintCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print this host's device signature and fingerprint hash",
		Long: `Derives the device signature from the local environment and prints its
fingerprint hash. The hash is a heuristic identifier, not a security control.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fp := deriveFingerprint()
			if asJSON {
				return c.printJSON(fp)
			}
			c.printf("%s\n", fp.Hash)
			c.printf("  signature: %s\n", fp.Signature.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print signature fields as JSON")
	return cmd
}

func (c *cli) sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Issue a guest session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := service.NewSessionIssuer(kvstore.NewMemoryStore()).Token(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("%s\n", tok)
			return nil
		},
	}
}
