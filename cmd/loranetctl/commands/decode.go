package commands

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loranet/loranet/internal/mesh"
)

var errMissingSiteFlags = errors.New("--site-id and --site-key are both required")

func decodeCmd() *cobra.Command {
	var siteIDHex, siteKeyHex string

	cmd := &cobra.Command{
		Use:   "decode <hex-frame>",
		Short: "Decode a hex-encoded on-air frame into its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if siteIDHex == "" || siteKeyHex == "" {
				return errMissingSiteFlags
			}

			siteID, err := hex.DecodeString(siteIDHex)
			if err != nil {
				return fmt.Errorf("parse --site-id: %w", err)
			}

			siteKey, err := hex.DecodeString(siteKeyHex)
			if err != nil {
				return fmt.Errorf("parse --site-key: %w", err)
			}

			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("parse frame hex: %w", err)
			}

			key, err := mesh.DeriveKey(siteKey, siteID)
			if err != nil {
				return fmt.Errorf("derive frame key: %w", err)
			}

			seed, ciphertext, err := mesh.SplitFrame(siteID, raw)
			if err != nil {
				return fmt.Errorf("split frame: %w", err)
			}

			plaintext, err := mesh.DecryptFrame(key, seed, ciphertext)
			if err != nil {
				return fmt.Errorf("decrypt frame: %w", err)
			}

			p, err := mesh.DecodePlaintext(plaintext)
			if err != nil {
				return fmt.Errorf("decode plaintext: %w", err)
			}

			printPlaintext(p)
			return nil
		},
	}

	cmd.Flags().StringVar(&siteIDHex, "site-id", "", "site id prefix, hex-encoded (required)")
	cmd.Flags().StringVar(&siteKeyHex, "site-key", "", "16-byte site key, hex-encoded (required)")

	return cmd
}

func printPlaintext(p mesh.Plaintext) {
	fmt.Printf("to_addr:   0x%02x\n", p.ToAddr)
	fmt.Printf("from_addr: 0x%02x\n", p.FromAddr)
	fmt.Printf("msg_type:  0x%02x\n", p.MsgType)
	fmt.Printf("session:   %s\n", hex.EncodeToString(p.Session[:]))
	fmt.Printf("counter:   %d\n", p.Counter)
	fmt.Printf("data:      %s\n", hex.EncodeToString(p.Data))
}
