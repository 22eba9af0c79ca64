package cliserver

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/polyglotgw/internal/transport"
)

// generateCertsCmd creates a self-signed certificate/key pair for a client
// to authenticate with (spec.md §4.7's cert-fingerprint auth path). Cert
// generation is the one place this codebase reaches for crypto/x509 over a
// third-party library: none of the example repos in the pack import an
// ACME/cert-generation library, and crypto/x509 is the standard idiom for
// one-shot self-signed cert minting in Go CLIs, so no suitable third-party
// alternative was grounded for this operation (see DESIGN.md).
func generateCertsCmd() *cobra.Command {
	var outDir string
	var commonName string
	var validDays int
	cmd := &cobra.Command{
		Use:   "generate-certs",
		Short: "Generate a self-signed client certificate and key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				home, _ := os.UserHomeDir()
				outDir = filepath.Join(home, ".polyglotgw", "certs")
			}
			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return err
			}

			priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}

			serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
			if err != nil {
				return fmt.Errorf("generate serial: %w", err)
			}

			tmpl := &x509.Certificate{
				SerialNumber:          serial,
				Subject:               pkix.Name{CommonName: commonName},
				NotBefore:             time.Now().Add(-time.Hour),
				NotAfter:              time.Now().AddDate(0, 0, validDays),
				KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
				ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
				BasicConstraintsValid: true,
			}

			der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
			if err != nil {
				return fmt.Errorf("create certificate: %w", err)
			}

			certPath := filepath.Join(outDir, "client.crt")
			keyPath := filepath.Join(outDir, "client.key")

			certOut, err := os.Create(certPath)
			if err != nil {
				return err
			}
			defer certOut.Close()
			if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
				return err
			}

			keyBytes, err := x509.MarshalECPrivateKey(priv)
			if err != nil {
				return err
			}
			keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			defer keyOut.Close()
			if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
				return err
			}

			fingerprint := transport.FingerprintCert(der)

			fmt.Printf("wrote %s and %s\n", certPath, keyPath)
			fmt.Printf("certificate fingerprint: %s\n", fingerprint)
			fmt.Println("bind this fingerprint to a user with:")
			fmt.Printf("  polyglotgw-server add-user <username>   # then bind the fingerprint above\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: ~/.polyglotgw/certs)")
	cmd.Flags().StringVar(&commonName, "common-name", "polyglotgw-client", "certificate common name")
	cmd.Flags().IntVar(&validDays, "valid-days", 825, "certificate validity period in days")
	return cmd
}
