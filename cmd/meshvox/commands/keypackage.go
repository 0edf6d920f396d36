package commands

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"meshvox/internal/crypto"
	"meshvox/internal/domain"
	"meshvox/internal/protocol/keypackage"
)

func keyPackageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keypackage",
		Short: "Generate and inspect pre-key bundles",
	}
	cmd.AddCommand(keyPackageNewCmd(), keyPackageInspectCmd())
	return cmd
}

// keypackage new --name <name>: generate a fresh identity and key package.
func keyPackageNewCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a fresh identity and key package",
		RunE: func(cmd *cobra.Command, args []string) error {
			identPriv, identPub, err := crypto.GenerateEd25519()
			if err != nil {
				return err
			}
			kp, err := keypackage.Generate(identPriv, domain.Credential{Name: name, IdentityKey: identPub}, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("identity fingerprint: %s\n", crypto.Fingerprint(identPub.Slice()))
			fmt.Printf("init key fingerprint: %s\n", crypto.Fingerprint(kp.InitKey.Slice()))
			fmt.Printf("key package: %s\n", base64.StdEncoding.EncodeToString(keypackage.Marshal(kp)))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name bound into the credential")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// keypackage inspect <b64>: parse and validate a serialized key package.
func keyPackageInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <base64>",
		Short: "Parse and validate a serialized key package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode base64: %w", err)
			}
			kp, err := keypackage.Unmarshal(raw)
			if err != nil {
				return err
			}
			fmt.Printf("version:      0x%04x\n", kp.Version)
			fmt.Printf("cipher suite: 0x%04x\n", kp.CipherSuite)
			fmt.Printf("name:         %s\n", kp.Credential.Name)
			fmt.Printf("identity:     %s\n", crypto.Fingerprint(kp.Credential.IdentityKey.Slice()))
			fmt.Printf("init key:     %s\n", crypto.Fingerprint(kp.InitKey.Slice()))
			fmt.Printf("valid from:   %s\n", time.Unix(kp.NotBefore, 0).UTC().Format(time.RFC3339))
			fmt.Printf("valid until:  %s\n", time.Unix(kp.NotAfter, 0).UTC().Format(time.RFC3339))
			if err := keypackage.Validate(kp, time.Now()); err != nil {
				fmt.Printf("validation:   FAILED (%v)\n", err)
			} else {
				fmt.Println("validation:   ok")
			}
			return nil
		},
	}
}
