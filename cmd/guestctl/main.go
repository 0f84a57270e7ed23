// Command guestctl drives the guest identity system from a terminal: it can
// derive this host's device fingerprint, resolve it to a guest, and run the
// moderation actions of the admin console directly against the database.
package main

import (
	"os"
)

func main() {
	c := newCLI(os.Stdout)
	err := c.rootCmd().Execute()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}
