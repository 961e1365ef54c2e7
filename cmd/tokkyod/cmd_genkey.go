package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var genkeyDir string

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate an Ed25519 key pair for JWT signing",
	Long: `Generates the Ed25519 key pair used to sign and verify API tokens.

Writes jwt_private.pem (mode 0600) and jwt_public.pem to the target
directory; point TOKKYO_JWT_PRIVATE_KEY and TOKKYO_JWT_PUBLIC_KEY at them.

Without persisted keys the server generates an ephemeral pair on every
start, invalidating all outstanding tokens on restart.`,
	RunE: runGenkey,
}

func init() {
	genkeyCmd.Flags().StringVar(&genkeyDir, "dir", "data", "directory to write the key pair into")
}

func runGenkey(_ *cobra.Command, _ []string) error {
	privPath := filepath.Join(genkeyDir, "jwt_private.pem")
	pubPath := filepath.Join(genkeyDir, "jwt_public.pem")

	if err := os.MkdirAll(genkeyDir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", genkeyDir, err)
	}

	// Refuse to overwrite existing keys; rotating by accident invalidates
	// every live token.
	for _, path := range []string{privPath, pubPath} {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, delete it first to rotate keys", path)
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	if err := writePEM(privPath, "PRIVATE KEY", privDER); err != nil {
		return err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}
	if err := writePEM(pubPath, "PUBLIC KEY", pubDER); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", privPath)
	fmt.Printf("wrote %s\n", pubPath)
	return nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
