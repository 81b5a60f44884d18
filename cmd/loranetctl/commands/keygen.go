package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

// siteKeyLen is the width of a loranet site key (spec §4.A).
const siteKeyLen = 16

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random 16-byte site key, hex-encoded",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			key := make([]byte, siteKeyLen)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate site key: %w", err)
			}

			fmt.Println(hex.EncodeToString(key))
			return nil
		},
	}
}
