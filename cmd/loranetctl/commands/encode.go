package commands

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loranet/loranet/internal/mesh"
)

var errSessionLength = errors.New("--session must decode to exactly 8 bytes")

func encodeCmd() *cobra.Command {
	var (
		siteIDHex  string
		siteKeyHex string
		sessionHex string
		dataHex    string
		toAddr     uint8
		fromAddr   uint8
		msgType    uint8
		counter    uint16
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode fields into a hex-encoded on-air frame",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
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

			session, err := parseSession(sessionHex)
			if err != nil {
				return err
			}

			data, err := hex.DecodeString(dataHex)
			if err != nil {
				return fmt.Errorf("parse --data: %w", err)
			}

			key, err := mesh.DeriveKey(siteKey, siteID)
			if err != nil {
				return fmt.Errorf("derive frame key: %w", err)
			}

			plaintext, err := mesh.EncodePlaintext(mesh.Plaintext{
				ToAddr:   toAddr,
				FromAddr: fromAddr,
				MsgType:  msgType,
				Session:  session,
				Counter:  counter,
				Data:     data,
			})
			if err != nil {
				return fmt.Errorf("encode plaintext: %w", err)
			}

			var seedBytes [2]byte
			if _, err := rand.Read(seedBytes[:]); err != nil {
				return fmt.Errorf("generate iv seed: %w", err)
			}

			ciphertext, err := mesh.EncryptFrame(key, seedBytes, plaintext)
			if err != nil {
				return fmt.Errorf("encrypt frame: %w", err)
			}

			frame := mesh.BuildFrame(siteID, seedBytes, ciphertext)
			fmt.Println(hex.EncodeToString(frame))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&siteIDHex, "site-id", "", "site id prefix, hex-encoded (required)")
	flags.StringVar(&siteKeyHex, "site-key", "", "16-byte site key, hex-encoded (required)")
	flags.StringVar(&sessionHex, "session", "0000000000000000", "8-byte session id, hex-encoded")
	flags.StringVar(&dataHex, "data", "", "application payload, hex-encoded")
	flags.Uint8Var(&toAddr, "to", 0, "destination mesh address")
	flags.Uint8Var(&fromAddr, "from", 0, "source mesh address")
	flags.Uint8Var(&msgType, "msg-type", uint8(mesh.FirstAppMsgType), "message type byte")
	flags.Uint16Var(&counter, "counter", 0, "wire counter value")

	return cmd
}

func parseSession(sessionHex string) ([8]byte, error) {
	var session [8]byte

	raw, err := hex.DecodeString(sessionHex)
	if err != nil {
		return session, fmt.Errorf("parse --session: %w", err)
	}
	if len(raw) != len(session) {
		return session, errSessionLength
	}

	copy(session[:], raw)
	return session, nil
}
